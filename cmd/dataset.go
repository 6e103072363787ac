package cmd

import (
	"fmt"
	"strings"

	"zm/internal/connection"

	"github.com/spf13/cobra"
)

var (
	mkdsAttrs connection.DatasetAttributes
	rmVolume  string
	hsmWait   bool
)

var mkdsCmd = &cobra.Command{
	Use:   "mkds <dataset>",
	Short: "Allocate a dataset",
	Long: `Allocate a sequential or partitioned dataset.

Examples:
  zm mkds USER.SOURCE --dsorg PO --recfm FB --lrecl 80 --primary 10 --dirblk 20
  zm mkds USER.COPY --like USER.SOURCE`,
	Args: cobra.ExactArgs(1),
	RunE: runMkds,
}

var rmCmd = &cobra.Command{
	Use:   "rm <dataset> | <dataset(member)>",
	Short: "Delete a dataset or member",
	Long: `Delete a dataset or one member of a PDS.

Examples:
  zm rm USER.OLD.JCL
  zm rm 'USER.JCL(TEMP)'
  zm rm USER.UNCAT --volume VOL001`,
	Args: cobra.ExactArgs(1),
	RunE: runRm,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <dataset>",
	Short: "Migrate a dataset with HSM",
	Args:  cobra.ExactArgs(1),
	RunE:  runHSM,
}

var recallCmd = &cobra.Command{
	Use:   "recall <dataset>",
	Short: "Recall a migrated dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runHSM,
}

func init() {
	rootCmd.AddCommand(mkdsCmd, rmCmd, migrateCmd, recallCmd)

	f := mkdsCmd.Flags()
	f.StringVar(&mkdsAttrs.Org, "dsorg", "PS", "PS or PO")
	f.StringVar(&mkdsAttrs.RecFm, "recfm", "FB", "record format")
	f.IntVar(&mkdsAttrs.LRecl, "lrecl", 80, "record length")
	f.IntVar(&mkdsAttrs.BlkSize, "blksize", 0, "block size (default: system determined)")
	f.StringVar(&mkdsAttrs.AllocUnit, "alcunit", "TRK", "TRK or CYL")
	f.IntVar(&mkdsAttrs.Primary, "primary", 1, "primary space")
	f.IntVar(&mkdsAttrs.Secondary, "secondary", 0, "secondary space")
	f.IntVar(&mkdsAttrs.DirBlocks, "dirblk", 0, "directory blocks (PO only)")
	f.StringVar(&mkdsAttrs.Volume, "volume", "", "volume serial")
	f.StringVar(&mkdsAttrs.Type, "dsntype", "", "LIBRARY for a PDSE")
	f.StringVar(&mkdsAttrs.StorClass, "storclass", "", "SMS storage class")
	f.StringVar(&mkdsAttrs.MgmtClass, "mgmtclass", "", "SMS management class")
	f.StringVar(&mkdsAttrs.DataClass, "dataclass", "", "SMS data class")
	f.StringVar(&mkdsAttrs.Like, "like", "", "copy attributes from an existing dataset")

	rmCmd.Flags().StringVar(&rmVolume, "volume", "", "volume of an uncataloged dataset")

	migrateCmd.Flags().BoolVar(&hsmWait, "wait", false, "return when the migration finished")
	recallCmd.Flags().BoolVar(&hsmWait, "wait", false, "return when the recall finished")
}

// allocation returns the attributes to send. With --like only the flags the
// user set override the model dataset.
func allocation(attrs connection.DatasetAttributes, changed func(string) bool) (connection.DatasetAttributes, error) {
	if attrs.Like != "" {
		like := connection.DatasetAttributes{Like: attrs.Like}
		if changed("volume") {
			like.Volume = attrs.Volume
		}
		if changed("primary") {
			like.Primary, like.AllocUnit = attrs.Primary, attrs.AllocUnit
		}
		return like, nil
	}

	attrs.Org = strings.ToUpper(attrs.Org)
	switch attrs.Org {
	case "PS":
		if attrs.DirBlocks > 0 {
			return attrs, fmt.Errorf("--dirblk needs --dsorg PO")
		}
	case "PO":
		if attrs.DirBlocks == 0 && !strings.EqualFold(attrs.Type, "LIBRARY") {
			attrs.DirBlocks = 5
		}
	default:
		return attrs, fmt.Errorf("unsupported dsorg %q (expected PS or PO)", attrs.Org)
	}
	attrs.RecFm = strings.ToUpper(attrs.RecFm)
	attrs.AllocUnit = strings.ToUpper(attrs.AllocUnit)
	return attrs, nil
}

func runMkds(cmd *cobra.Command, args []string) error {
	attrs, err := allocation(mkdsAttrs, func(name string) bool { return cmd.Flags().Changed(name) })
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, "mkds")
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.CreateDataset(ctx, args[0], attrs); err != nil {
		return err
	}
	fmt.Printf("Allocated %s\n", strings.ToUpper(trimQuotes(args[0])))
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	target := trimQuotes(strings.TrimSpace(args[0]))
	var dataset, member string
	if strings.Contains(target, "(") {
		var err error
		if dataset, member, err = parseDSN(target); err != nil {
			return err
		}
		if rmVolume != "" {
			return fmt.Errorf("--volume applies to whole datasets only")
		}
	} else {
		dataset = target
	}

	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, "rm")
	if err != nil {
		return err
	}
	defer conn.Close()

	if member != "" {
		err = conn.DeleteMember(ctx, dataset, member)
	} else {
		err = conn.DeleteDataset(ctx, dataset, rmVolume)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", strings.ToUpper(target))
	return nil
}

func runHSM(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, conn, err := openZOSMF(ctx, cmd.Name())
	if err != nil {
		return err
	}
	defer conn.Close()

	name := strings.ToUpper(trimQuotes(args[0]))
	if cmd.Name() == "migrate" {
		err = conn.MigrateDataset(ctx, name, hsmWait)
	} else {
		err = conn.RecallDataset(ctx, name, hsmWait)
	}
	if err != nil {
		return err
	}
	if hsmWait {
		fmt.Printf("%s: %s done\n", name, cmd.Name())
	} else {
		fmt.Printf("%s: %s requested\n", name, cmd.Name())
	}
	return nil
}
