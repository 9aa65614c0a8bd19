package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	clipeditor "media-studio-server/modules/clip-editor"
	"media-studio-server/modules/common/storage"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := storage.NewStore(cfg)

			namespaces := []storage.Namespace{storage.GeneratedImage, storage.GeneratedVideo}
			if all {
				namespaces = storage.Namespaces()
			}
			var refs []string
			for _, ns := range namespaces {
				artifacts, err := store.List(ns)
				if err != nil {
					return err
				}
				for _, a := range artifacts {
					refs = append(refs, a.Reference())
				}
			}

			if asJSON {
				if refs == nil {
					refs = []string{}
				}
				return writeJSON(cmd, refs)
			}
			for _, ref := range refs {
				fmt.Fprintln(cmd.OutOrStdout(), ref)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON")
	cmd.Flags().BoolVar(&all, "all", false, "Include uploaded images")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <ref>...",
		Short: "Delete artifacts by reference or bare filename",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := storage.NewStore(cfg)
			for _, ref := range args {
				a, err := store.Delete(cmd.Context(), ref)
				if err != nil {
					return fmt.Errorf("delete %s: %w", ref, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", a.Reference())
			}
			return nil
		},
	}
}

func newTrimCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trim <ref> <start> <end>",
		Short: "Cut a time range into a new trimmed_ video",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid start %q: %w", args[1], err)
			}
			end, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid end %q: %w", args[2], err)
			}
			studio, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := studio.Editor.Trim(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.VideoPath)
			return nil
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <ref:start:end>...",
		Short: "Concatenate scenes into a new sequence_ video",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenes := make([]clipeditor.TimelineItem, 0, len(args))
			for _, arg := range args {
				item, err := parseScene(arg)
				if err != nil {
					return err
				}
				scenes = append(scenes, item)
			}
			studio, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			res, err := studio.Editor.ExportSequence(cmd.Context(), scenes)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.VideoPath)
			return nil
		},
	}
}

func newClassifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <prompt>",
		Short: "Show whether a prompt asks for a new image or an edit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			studio, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}
			prompt := strings.Join(args, " ")
			intent := studio.Classifier.Classify(cmd.Context(), prompt)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "prompt\t%s\n", prompt)
			fmt.Fprintf(w, "intent\t%s\n", intent)
			return w.Flush()
		},
	}
}

// parseScene - "<ref>:<start>:<end>"; the ref itself never contains a colon
func parseScene(arg string) (clipeditor.TimelineItem, error) {
	parts := strings.Split(arg, ":")
	if len(parts) != 3 || parts[0] == "" {
		return clipeditor.TimelineItem{}, fmt.Errorf("scene %q must look like <ref>:<start>:<end>", arg)
	}
	start, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return clipeditor.TimelineItem{}, fmt.Errorf("scene %q: invalid start: %w", arg, err)
	}
	end, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return clipeditor.TimelineItem{}, fmt.Errorf("scene %q: invalid end: %w", arg, err)
	}
	return clipeditor.TimelineItem{Path: parts[0], StartTime: start, EndTime: end}, nil
}
