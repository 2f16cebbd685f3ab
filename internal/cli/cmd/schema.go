package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bnema/jsbridge/internal/config"
)

var schemaMessage bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print a JSON schema",
	Long: `Print the JSON schema of the configuration file, or with --message the
schema of one message exchanged with the page.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printSchema(cmd.OutOrStdout(), schemaMessage)
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.Flags().BoolVarP(&schemaMessage, "message", "m", false, "print the wire message schema")
}

func printSchema(out io.Writer, message bool) error {
	generate := config.GenerateSchema
	if message {
		generate = config.GenerateMessageSchema
	}
	data, err := generate()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
