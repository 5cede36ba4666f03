package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/zotero2craft/zotero2craft/internal/app"
)

var testCmd = &cobra.Command{
	Use:     "test",
	GroupID: "config",
	Short:   "Check the Zotero, Craft and AI credentials",
	Run: func(cmd *cobra.Command, args []string) {
		a, _ := openApp(false)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		c := a.TestConnections(ctx)
		out.Printf("%s\n%s\n%s\n",
			out.Check("Zotero", c.Zotero),
			out.Check("Craft", c.Craft),
			out.Check("AI", c.AI))

		if !c.Zotero || !c.Craft || !c.AI {
			fatal("connection test failed")
		}
	},
}

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	GroupID: "config",
	Short:   "List collections to pick keys for the config",
}

var collectionsZoteroCmd = &cobra.Command{
	Use:   "zotero",
	Short: "List Zotero collections (zotero.collection_id)",
	Run: func(cmd *cobra.Command, args []string) {
		a, _ := openApp(false)

		cols, err := a.SourceCollections(context.Background())
		if err != nil {
			collectionsFailed(err, "Zotero")
		}
		out.Printf("%s", out.SourceCollections(cols))
	},
}

var collectionsCraftCmd = &cobra.Command{
	Use:   "craft",
	Short: "List Craft collections (craft.target_collection_id)",
	Run: func(cmd *cobra.Command, args []string) {
		a, _ := openApp(false)

		cols, err := a.SinkCollections(context.Background())
		if err != nil {
			collectionsFailed(err, "Craft")
		}
		out.Printf("%s", out.SinkCollections(cols))
	},
}

func collectionsFailed(err error, service string) {
	if app.IsConfigError(err) {
		fatal("missing %s credentials: %v", service, err)
	}
	fatal("failed to fetch collections: %v", err)
}

func init() {
	collectionsCmd.AddCommand(collectionsZoteroCmd)
	collectionsCmd.AddCommand(collectionsCraftCmd)

	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(collectionsCmd)
}
