package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"zm/internal/connection"

	"github.com/spf13/cobra"
)

var (
	sysvarSystem string
	sysvarImport string
)

var sysvarCmd = &cobra.Command{
	Use:   "sysvar [name...]",
	Short: "Show z/OSMF system variables",
	Long: `Show system variables defined in z/OSMF, all of them or by name.

Examples:
  zm sysvar
  zm sysvar SYSNAME SYSCLONE --system PLEX1.SYS1
  zm sysvar --import /u/ibmuser/vars.csv`,
	RunE: runSysvar,
}

func init() {
	rootCmd.AddCommand(sysvarCmd)
	sysvarCmd.Flags().StringVar(&sysvarSystem, "system", "local", "'local' or SYSPLEX.SYSTEM")
	sysvarCmd.Flags().StringVar(&sysvarImport, "import", "", "import variables from a z/OS UNIX file before showing them")
}

func runSysvar(cmd *cobra.Command, args []string) error {
	system, err := connection.ParseSystemID(sysvarSystem)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, "sysvar")
	if err != nil {
		return err
	}
	defer conn.Close()

	if sysvarImport != "" {
		if err := conn.ImportSystemVariables(ctx, system, sysvarImport); err != nil {
			return err
		}
		fmt.Printf("Imported %s into %s\n", sysvarImport, system)
	}

	vars, err := conn.SystemVariables(ctx, system, args...)
	if err != nil {
		return err
	}
	printVariables(os.Stdout, vars)
	return nil
}

func printVariables(out io.Writer, vars []connection.SystemVariable) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVALUE\tDESCRIPTION")
	for _, v := range vars {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.Name, v.Value, v.Description)
	}
	w.Flush()
}
