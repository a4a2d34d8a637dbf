// Package searchcmder provides the search command, a semantic search over a
// running recall server's memories.
package searchcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/api/client"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/runstate"
	"github.com/papercomputeco/recall/pkg/utils"
)

const searchLongDesc string = `Search stored messages and conversation summaries.

Results come from a running recall server and are ordered by similarity.
Scope them with --project, --user, --agent or --type.

Examples:
  recall search "kafka outage"
  recall search "deploy plan" --project web --limit 3`

const searchShortDesc string = "Search stored memories"

const previewLen = 120

func NewSearchCmd() *cobra.Command {
	var (
		target    string
		threshold float64
		q         memory.SearchQuery
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			explicit := ""
			if cmd.Flags().Changed("api-target") {
				explicit = target
			}
			c, err := client.New(runstate.ResolveAPITarget(configDir, explicit, v.GetString("client.api_target")))
			if err != nil {
				return err
			}

			q.Query = strings.Join(args, " ")
			if cmd.Flags().Changed("threshold") {
				q.SimilarityThreshold = memory.Threshold(threshold)
			}
			out, err := c.Search(cmd.Context(), q)
			if err != nil {
				return err
			}

			printResults(cmd.OutOrStdout(), out)
			return nil
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &target)
	cmd.Flags().StringVarP(&q.ProjectID, "project", "p", "", "Restrict results to a project")
	cmd.Flags().StringVarP(&q.UserID, "user", "u", "", "Restrict results to messages sent by a user")
	cmd.Flags().StringVar(&q.AgentID, "agent", "", "Restrict results to an agent")
	cmd.Flags().StringVar(&q.MessageType, "type", "", "Restrict results to a message type")
	cmd.Flags().IntVarP(&q.Limit, "limit", "n", 10, "Number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum similarity (default: server setting)")

	return cmd
}

func printResults(w io.Writer, out *api.SearchResponse) {
	if out.Count == 0 {
		fmt.Fprintf(w, "\n  %s\n\n", cliui.DimStyle.Render("No memories found for "+fmt.Sprintf("%q", out.Query)))
		return
	}

	fmt.Fprintf(w, "\n  %s %s\n\n", cliui.KeyStyle.Render(fmt.Sprintf("%d results for", out.Count)), fmt.Sprintf("%q", out.Query))

	for _, hit := range out.Hits {
		var who, text, conv string
		switch {
		case hit.Message != nil:
			who = hit.Message.Sender
			text = hit.Message.Content
			conv = hit.Message.ConversationID
		case hit.Summary != nil:
			who = strings.Join(hit.Summary.Topics, ", ")
			text = hit.Summary.SummaryText
			conv = hit.Summary.ConversationID
		}

		fmt.Fprintf(w, "  %s %s %s %s\n",
			cliui.ValueStyle.Render(fmt.Sprintf("%.3f", hit.Score)),
			cliui.KeyStyle.Render("["+string(hit.Kind)+"]"),
			cliui.DimStyle.Render(conv),
			who,
		)
		fmt.Fprintf(w, "        %s\n", preview(text))
	}
	fmt.Fprintln(w)
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len([]rune(text)) <= previewLen {
		return text
	}
	return utils.Truncate(text, previewLen-3)
}
