package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/spf13/cobra"

	"github.com/signalnest/magpie/pkg/graph"
	"github.com/signalnest/magpie/pkg/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show graph size and type breakdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		stats, err := st.GetStats(ctx)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render("Knowledge graph"))
		fmt.Printf("  %d entities, %d relationships\n\n", stats.TotalEntities, stats.TotalRelationships)

		t := newTable("Entity Type", "Count")
		for _, k := range sortedKeys(stats.EntitiesByType) {
			t.Row(k, strconv.Itoa(stats.EntitiesByType[k]))
		}
		fmt.Println(t.Render())

		t = newTable("Predicate", "Count")
		for _, k := range sortedKeys(stats.RelationshipsByType) {
			t.Row(k, strconv.Itoa(stats.RelationshipsByType[k]))
		}
		fmt.Println(t.Render())
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search entities by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		entities, err := st.SearchEntities(ctx, args[0], entityType, limit)
		if err != nil {
			return err
		}
		if len(entities) == 0 {
			fmt.Println(mutedStyle.Render("No entities found."))
			return nil
		}
		fmt.Println(renderEntities(entities))
		return nil
	},
}

var entityCmd = &cobra.Command{
	Use:   "entity <id>",
	Short: "Show one entity with aliases, tags, enrichment, and edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entity id %q", args[0])
		}

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		entity, err := st.GetEntityByID(ctx, id)
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(entity.Name) + mutedStyle.Render(fmt.Sprintf("  (%s, #%d)", entity.Type, entity.ID)))
		fmt.Printf("  mentions: %d   first seen: %s   last seen: %s\n",
			entity.MentionCount,
			entity.FirstSeen.Format("2006-01-02"),
			entity.LastSeen.Format("2006-01-02"))
		for _, k := range sortedKeys(entity.Attributes) {
			fmt.Printf("  %s: %v\n", k, entity.Attributes[k])
		}

		aliases, err := st.GetEntityAliases(ctx, id)
		if err != nil {
			return err
		}
		if len(aliases) > 0 {
			names := make([]string, 0, len(aliases))
			for _, a := range aliases {
				names = append(names, a.Alias)
			}
			fmt.Println("  aliases:", names)
		}

		tags, err := st.GetEntityTags(ctx, id)
		if err != nil {
			return err
		}
		if len(tags) > 0 {
			fmt.Println("  tags:", tags)
		}

		enrichment, err := st.GetEnrichment(ctx, id)
		if err != nil {
			return err
		}
		for _, e := range enrichment {
			fmt.Printf("  enriched via %s (%s)\n", e.Source, e.EnrichedAt.Format("2006-01-02"))
		}

		// Both directions, matched by name since edges join on entity
		// rows.
		asSubject, err := st.QueryRelationships(ctx, store.RelationshipFilter{Subject: entity.Name})
		if err != nil {
			return err
		}
		asObject, err := st.QueryRelationships(ctx, store.RelationshipFilter{Object: entity.Name})
		if err != nil {
			return err
		}
		edges := append(asSubject, asObject...)
		if len(edges) > 0 {
			fmt.Println()
			fmt.Println(renderRelationships(edges))
		}
		return nil
	},
}

var acquisitionsCmd = &cobra.Command{
	Use:   "acquisitions",
	Short: "List acquisitions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := sinceFlag(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		rels, err := graph.New(st).Acquisitions(ctx, since)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			fmt.Println(mutedStyle.Render("No acquisitions recorded."))
			return nil
		}
		fmt.Println(renderRelationships(rels))
		return nil
	},
}

var whoHiredCmd = &cobra.Command{
	Use:   "who-hired <company>",
	Short: "List people hired by a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		since, err := sinceFlag(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		rels, err := graph.New(st).WhoHired(ctx, args[0], since)
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			fmt.Println(mutedStyle.Render("No hires recorded."))
			return nil
		}
		fmt.Println(renderRelationships(rels))
		return nil
	},
}

var trajectoryCmd = &cobra.Command{
	Use:   "trajectory <person>",
	Short: "Show a person's career moves in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		rels, err := graph.New(st).PersonTrajectory(ctx, args[0])
		if err != nil {
			return err
		}
		if len(rels) == 0 {
			fmt.Println(mutedStyle.Render("No career events recorded."))
			return nil
		}
		for _, rel := range rels {
			fmt.Printf("%s  %s %s %s\n",
				mutedStyle.Render(fmtDate(rel.EventDate)),
				endpointName(rel.Subject, rel.SubjectID),
				rel.Predicate,
				endpointName(rel.Object, rel.ObjectID))
		}
		return nil
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags with entity counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, closeStore, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()

		counts, err := st.TagCounts(ctx)
		if err != nil {
			return err
		}
		if len(counts) == 0 {
			fmt.Println(mutedStyle.Render("No tags."))
			return nil
		}
		t := newTable("Tag", "Entities")
		for _, k := range sortedKeys(counts) {
			t.Row(k, strconv.Itoa(counts[k]))
		}
		fmt.Println(t.Render())
		return nil
	},
}

func sinceFlag(cmd *cobra.Command) (*time.Time, error) {
	raw, _ := cmd.Flags().GetString("since")
	if raw == "" {
		return nil, nil
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid --since date %q", raw)
	}
	return &parsed, nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	searchCmd.Flags().String("type", "", "filter by entity type (company, person, investor)")
	searchCmd.Flags().Int("limit", 20, "maximum results")
	acquisitionsCmd.Flags().String("since", "", "only events on or after this date")
	whoHiredCmd.Flags().String("since", "", "only events on or after this date")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(entityCmd)
	rootCmd.AddCommand(acquisitionsCmd)
	rootCmd.AddCommand(whoHiredCmd)
	rootCmd.AddCommand(trajectoryCmd)
	rootCmd.AddCommand(tagsCmd)
}
