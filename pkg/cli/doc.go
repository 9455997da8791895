/*
Package cli provides helpers shared by the cloudengine command.

Output Formatting:

Commands render results as text, JSON or CSV. Tabular results implement
Table so every format can render them:

	formatter, err := cli.NewFormatter(cli.FormatCSV)
	if err != nil {
		return err
	}
	return formatter.FormatTo(os.Stdout, records)

Errors:

Command failures are wrapped in a CommandError; ExitCode maps an error to the
process exit status.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli
