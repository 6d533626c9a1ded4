/*
Package cli provides helpers shared by the conduit commands.

Output Formatting:

Command results are printed as text tables, JSON or CSV. Values that
implement Table render as rows in the text and CSV formats; anything else
is printed with its default formatting.

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, decision); err != nil {
		return err
	}

Signal Handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
	// ctx is cancelled on SIGINT or SIGTERM
*/
package cli
