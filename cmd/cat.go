package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"zm/internal/connection"

	"github.com/spf13/cobra"
)

var catBinary bool

var catCmd = &cobra.Command{
	Use:   "cat <dataset(member)>",
	Short: "Display content of a member or USS file",
	Long: `Display the content of a PDS member or USS file.

Examples:
  zm cat 'USERNAME.SOURCE(MYPROG)'   # display PDS member
  zm cat /u/username/file.txt        # display USS file
  zm cat --binary /u/username/a.out  # raw bytes, no code page conversion`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
	catCmd.Flags().BoolVar(&catBinary, "binary", false, "transfer without EBCDIC conversion (z/OSMF only)")
}

func runCat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dataType := ""
	if catBinary {
		dataType = connection.DataTypeBinary
	}
	_, conn, err := openConnection(ctx, dataType)
	if err != nil {
		return err
	}
	defer conn.Close()

	path := args[0]
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	// z/OSMF streams in record windows; FTP reads the whole thing.
	if z, ok := conn.(*connection.ZOSMFConnection); ok {
		var r io.Reader
		if path[0] == '/' {
			r, err = z.OpenFile(ctx, path)
		} else {
			dataset, member, perr := parseDSN(path)
			if perr != nil {
				return perr
			}
			r, err = z.OpenMember(ctx, dataset, member)
		}
		if err != nil {
			return err
		}
		_, err = io.Copy(os.Stdout, r)
		return err
	}

	// USS path starts with /
	if path[0] == '/' {
		content, err := conn.ReadFile(ctx, path)
		if err != nil {
			return err
		}
		fmt.Print(string(content))
		return nil
	}

	// Dataset member: DATASET(MEMBER)
	dataset, member, err := parseDSN(path)
	if err != nil {
		return err
	}

	content, err := conn.ReadMember(ctx, dataset, member)
	if err != nil {
		return err
	}
	fmt.Print(string(content))
	return nil
}

// parseDSN splits "DATASET(MEMBER)", optionally quoted, into its parts.
func parseDSN(dsn string) (dataset, member string, err error) {
	dsn = trimQuotes(strings.TrimSpace(dsn))

	dataset, rest, ok := strings.Cut(dsn, "(")
	member, tail, closed := strings.Cut(rest, ")")
	if !ok || !closed || tail != "" || dataset == "" || member == "" {
		return "", "", fmt.Errorf("invalid dataset format: %s (expected DATASET(MEMBER))", dsn)
	}
	if len(member) > 8 {
		return "", "", fmt.Errorf("invalid member name %q: longer than 8 characters", member)
	}
	return dataset, member, nil
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
