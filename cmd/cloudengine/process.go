package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/cloudengine/pkg/cli"
	"mercator-hq/cloudengine/pkg/enginefactory"
	"mercator-hq/cloudengine/pkg/evidence"
	"mercator-hq/cloudengine/pkg/flow"
	"mercator-hq/cloudengine/pkg/properties"
)

var processFlags struct {
	evidence   []string
	properties []string
	format     string
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Send evidence to the cloud service and print property values",
	Long: `Send evidence to the cloud service and print the resulting property values.

Evidence is given as key=value pairs. Keys are prefixed with the evidence
bucket: header., cookie., query. or any other prefix.

Examples:
  # Resolve every property of the configured modules
  cloudengine process -e header.user-agent="Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"

  # Resolve selected properties
  cloudengine process -e query.user-agent=... -p device.ismobile -p device.hardwarevendor

  # Output as JSON
  cloudengine process -e header.user-agent=... --format json`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringArrayVarP(&processFlags.evidence, "evidence", "e", nil, "evidence as key=value (repeatable)")
	processCmd.Flags().StringArrayVarP(&processFlags.properties, "property", "p", nil, "property to print as module.name (repeatable)")
	processCmd.Flags().StringVarP(&processFlags.format, "format", "f", "text", "output format (text, json, csv)")
}

// propertyRow is one resolved property.
type propertyRow struct {
	Module        string `json:"module"`
	Property      string `json:"property"`
	HasValue      bool   `json:"has_value"`
	Value         any    `json:"value,omitempty"`
	NoValueReason string `json:"no_value_reason,omitempty"`
	Error         string `json:"error,omitempty"`
}

// processResult is the output of the process command.
type processResult struct {
	Properties []propertyRow `json:"properties"`
	Errors     []string      `json:"errors,omitempty"`
}

func (r *processResult) Header() []string {
	return []string{"MODULE", "PROPERTY", "VALUE"}
}

func (r *processResult) Rows() [][]string {
	rows := make([][]string, 0, len(r.Properties))
	for _, p := range r.Properties {
		rows = append(rows, []string{p.Module, p.Property, p.display()})
	}
	return rows
}

func (p propertyRow) display() string {
	switch {
	case p.Error != "":
		return "error: " + p.Error
	case !p.HasValue && p.NoValueReason == "":
		return "no value"
	case !p.HasValue:
		return "no value: " + p.NoValueReason
	}
	if s, ok := p.Value.(string); ok {
		return s
	}
	b, err := json.Marshal(p.Value)
	if err != nil {
		return fmt.Sprint(p.Value)
	}
	return string(b)
}

func runProcess(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(processFlags.format))
	if err != nil {
		return err
	}
	store, err := parseEvidence(processFlags.evidence)
	if err != nil {
		return err
	}
	selected, err := parseSelectors(processFlags.properties)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cmd, cfg)
	if err != nil {
		return err
	}

	// The memory journal would be discarded on exit.
	stack, err := enginefactory.Build(cfg, enginefactory.Options{
		Logger:         logger.Logger,
		Redactor:       logger.Redactor(),
		DisableJournal: cfg.Journal.Backend != "sqlite",
	})
	if err != nil {
		return cli.NewCommandError("process", err)
	}
	defer stack.Close()

	data := stack.Pipeline.CreateData(store)
	if err := stack.Pipeline.Process(cmd.Context(), data); err != nil {
		return cli.NewCommandError("process", err)
	}

	result := &processResult{}
	for _, e := range data.Errors() {
		result.Errors = append(result.Errors, e.Error())
	}

	modules := stack.Modules
	if len(selected) > 0 {
		modules = slices.Sorted(maps.Keys(selected))
	}
	for _, module := range modules {
		rows, err := resolveProperties(data, module, selected[module])
		if err != nil {
			return cli.NewCommandError("process", err)
		}
		result.Properties = append(result.Properties, rows...)
	}

	for _, e := range result.Errors {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", e)
	}
	return formatter.FormatTo(cmd.OutOrStdout(), result)
}

// resolveProperties looks up the requested properties of module, or every
// property it returned when none are requested.
func resolveProperties(data *flow.Data, module string, requested []string) ([]propertyRow, error) {
	md, ok := flow.GetAs[*properties.ModuleData](data, module)
	if !ok {
		return []propertyRow{{Module: module, Error: "module not available"}}, nil
	}

	names := requested
	lookup := md.Get
	if len(names) == 0 {
		var err error
		if names, err = md.Names(); err != nil {
			return nil, err
		}
		lookup = md.Lookup
	}

	rows := make([]propertyRow, 0, len(names))
	for _, name := range names {
		row := propertyRow{Module: module, Property: strings.ToLower(name)}
		outcome, err := lookup(name)
		var nf *properties.PropertyNotFoundError
		switch {
		case errors.As(err, &nf):
			row.Error = err.Error()
		case err != nil:
			return nil, err
		case outcome.HasValue():
			row.HasValue, row.Value = true, outcome.Value
		default:
			row.NoValueReason = outcome.NoValueReason
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseEvidence turns key=value pairs into an evidence store.
func parseEvidence(pairs []string) (*evidence.Store, error) {
	store := evidence.NewStore()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid evidence %q: expected key=value", pair)
		}
		store.Set(strings.TrimSpace(key), value)
	}
	return store, nil
}

// parseSelectors groups module.property selectors by lower-cased module.
func parseSelectors(selectors []string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, sel := range selectors {
		module, prop, ok := strings.Cut(sel, ".")
		if !ok || module == "" || prop == "" {
			return nil, fmt.Errorf("invalid property %q: expected module.name", sel)
		}
		module = strings.ToLower(module)
		out[module] = append(out[module], prop)
	}
	return out, nil
}
