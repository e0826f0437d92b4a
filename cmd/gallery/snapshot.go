package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"candy-gallery/internal/domain"
	"candy-gallery/internal/gallery"
	"candy-gallery/internal/observability"
)

var snapshotJSON bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Run one load and refresh cycle and print the gallery",
	Long: `Loads the candy machine, evaluates the guard groups for --wallet and prints
the guard results, any notifications and the rendered gallery.

Example:
  gallery snapshot --candy-machine <address> --wallet <address>`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Print the snapshot as JSON")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	comp, err := buildGallery(cfg, memoryStores(), observability.DefaultMetrics, logger)
	if err != nil {
		return err
	}

	comp.controller.RunOnce(cmd.Context())
	snap := comp.controller.Snapshot()
	out := cmd.OutOrStdout()

	if snapshotJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Snapshot      domain.Snapshot       `json:"snapshot"`
			View          gallery.View          `json:"view"`
			Notifications []domain.Notification `json:"notifications"`
		}{snap, gallery.Render(snap.Loading, snap.Gallery), comp.notifier.Active()})
	}

	printSnapshot(out, snap, comp.notifier.Active())
	if snap.LastError != "" {
		return fmt.Errorf("refresh failed: %s", snap.LastError)
	}
	return nil
}

func printSnapshot(w io.Writer, snap domain.Snapshot, notices []domain.Notification) {
	if m := snap.Machine; m != nil {
		fmt.Fprintf(w, "Candy machine %s (%s): %d/%d redeemed\n", m.Address, m.Version, m.ItemsRedeemed, m.ItemsAvailable)
	}
	if snap.Wallet != "" {
		fmt.Fprintf(w, "Wallet %s, %d tokens owned\n", snap.Wallet, snap.OwnedTokens)
	}

	if len(notices) > 0 {
		fmt.Fprintln(w, "\nNotifications:")
		for _, n := range notices {
			fmt.Fprintf(w, "  [%s] %s %s\n", n.Severity, n.Title, n.Description)
		}
	}

	if snap.Guard != nil {
		fmt.Fprintln(w, "\nGuards:")
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, g := range snap.Guards {
			if g.Allowed {
				fmt.Fprintf(tw, "  %s\tallowed\tmax %d\n", g.Label, g.MaxAmount)
			} else {
				fmt.Fprintf(tw, "  %s\tblocked\t%s\n", g.Label, g.Reason)
			}
		}
		tw.Flush()
		fmt.Fprintf(w, "Mint allowed: %t\n", snap.MintAllowed)
	}

	fmt.Fprintln(w)
	view := gallery.Render(snap.Loading, snap.Gallery)
	if view.Kind != gallery.ViewGrid {
		fmt.Fprintln(w, view.Message)
		return
	}
	for _, row := range view.Rows {
		names := make([]string, len(row))
		for i, e := range row {
			names[i] = e.Name
		}
		fmt.Fprintln(w, strings.Join(names, " | "))
	}
}
