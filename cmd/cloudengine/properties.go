package main

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/cloudengine/pkg/cli"
	"mercator-hq/cloudengine/pkg/cloud"
	"mercator-hq/cloudengine/pkg/enginefactory"
)

var propertiesFlags struct {
	format string
}

var propertiesCmd = &cobra.Command{
	Use:   "properties [module...]",
	Short: "List the properties available to the resource key",
	Long: `List the property metadata the cloud service reports for the configured
resource key. Without arguments every module is listed.

Examples:
  # List everything
  cloudengine properties

  # List the device module as JSON
  cloudengine properties device --format json`,
	RunE: runProperties,
}

var evidenceKeysFlags struct {
	format string
}

var evidenceKeysCmd = &cobra.Command{
	Use:   "evidence-keys",
	Short: "List the evidence keys the cloud service accepts",
	Long: `List the evidence keys the cloud service accepts for the configured
resource key. Only evidence with these keys is sent on a process call.`,
	Args: cobra.NoArgs,
	RunE: runEvidenceKeys,
}

func init() {
	rootCmd.AddCommand(propertiesCmd)
	rootCmd.AddCommand(evidenceKeysCmd)

	propertiesCmd.Flags().StringVarP(&propertiesFlags.format, "format", "f", "text", "output format (text, json, csv)")
	evidenceKeysCmd.Flags().StringVarP(&evidenceKeysFlags.format, "format", "f", "text", "output format (text, json, csv)")
}

// propertyInfo is one row of the properties command.
type propertyInfo struct {
	Module   string         `json:"module"`
	Name     string         `json:"name"`
	Type     string         `json:"type,omitempty"`
	Category string         `json:"category,omitempty"`
	Items    []propertyInfo `json:"item_properties,omitempty"`
}

type propertyList []propertyInfo

func (l propertyList) Header() []string {
	return []string{"MODULE", "PROPERTY", "TYPE", "CATEGORY"}
}

func (l propertyList) Rows() [][]string {
	var rows [][]string
	for _, p := range l {
		rows = append(rows, []string{p.Module, p.Name, p.Type, p.Category})
		for _, item := range p.Items {
			rows = append(rows, []string{p.Module, p.Name + "." + item.Name, item.Type, item.Category})
		}
	}
	return rows
}

type keyList struct {
	Keys []string `json:"keys"`
}

func (l keyList) Header() []string { return []string{"KEY"} }

func (l keyList) Rows() [][]string {
	rows := make([][]string, len(l.Keys))
	for i, k := range l.Keys {
		rows[i] = []string{k}
	}
	return rows
}

func newMetadataStack(cmd *cobra.Command) (*enginefactory.Stack, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return nil, err
	}
	return enginefactory.Build(cfg, enginefactory.Options{
		Logger:         logger.Logger,
		DisableJournal: true,
	})
}

func runProperties(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(propertiesFlags.format))
	if err != nil {
		return err
	}
	stack, err := newMetadataStack(cmd)
	if err != nil {
		return cli.NewCommandError("properties", err)
	}
	defer stack.Close()

	schema, err := stack.Cloud.Properties(cmd.Context())
	if err != nil {
		return cli.NewCommandError("properties", err)
	}

	modules := args
	if len(modules) == 0 {
		for m := range schema {
			modules = append(modules, m)
		}
		slices.Sort(modules)
	}

	list := propertyList{}
	for _, module := range modules {
		props := schema.Module(module)
		for _, name := range props.Names() {
			list = append(list, toPropertyInfo(strings.ToLower(module), props[strings.ToLower(name)]))
		}
	}
	return formatter.FormatTo(cmd.OutOrStdout(), list)
}

func toPropertyInfo(module string, meta cloud.PropertyMeta) propertyInfo {
	info := propertyInfo{Module: module, Name: meta.Name, Type: meta.Type, Category: meta.Category}
	for _, item := range meta.ItemProperties {
		info.Items = append(info.Items, toPropertyInfo(module, item))
	}
	return info
}

func runEvidenceKeys(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(evidenceKeysFlags.format))
	if err != nil {
		return err
	}
	stack, err := newMetadataStack(cmd)
	if err != nil {
		return cli.NewCommandError("evidence-keys", err)
	}
	defer stack.Close()

	filter, err := stack.Pipeline.EvidenceKeyFilter(cmd.Context())
	if err != nil {
		return cli.NewCommandError("evidence-keys", err)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), keyList{Keys: filter.Keys()})
}
