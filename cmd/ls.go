package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"zm/internal/connection"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls [dataset | uss-dir]",
	Short: "List datasets, members or a USS directory",
	Long: `List datasets matching a pattern, members of a PDS, or a USS directory.

Examples:
  zm ls                     # list datasets matching HLQ.*
  zm ls 'USERNAME.SOURCE'   # list members in PDS
  zm ls /u/username         # list a USS directory (z/OSMF only)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	profile, conn, err := openConnection(ctx, "")
	if err != nil {
		return err
	}
	defer conn.Close()

	if len(args) == 0 {
		hlq := profile.HLQ
		if hlq == "" {
			hlq = strings.ToUpper(profile.User)
		}
		datasets, err := conn.ListDatasets(ctx, hlq)
		if err != nil {
			return err
		}
		for _, ds := range datasets {
			fmt.Println(ds)
		}
		return nil
	}

	target := args[0]
	if strings.HasPrefix(target, "/") {
		z, ok := conn.(*connection.ZOSMFConnection)
		if !ok {
			return fmt.Errorf("listing USS directories requires the zosmf protocol")
		}
		files, err := z.ListFiles(ctx, target)
		if err != nil {
			return err
		}
		printFiles(files)
		return nil
	}

	members, err := conn.ListMembers(ctx, target)
	if err != nil {
		return err
	}
	printMembers(members)
	return nil
}

func printMembers(members []connection.Member) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVV.MM\tCHANGED\tSIZE\tUSER")
	for _, m := range members {
		fmt.Fprintf(w, "%s\t%02d.%02d\t%s\t%d\t%s\n", m.Name, m.VV, m.MM, m.Changed, m.Size, m.User)
	}
	w.Flush()
}

func printFiles(files []connection.FileEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, f := range files {
		if f.Name == "." || f.Name == ".." {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", f.Mode, f.User, f.Group, f.Size, f.MTime, f.Name)
	}
	w.Flush()
}
