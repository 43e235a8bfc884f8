package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/maauso/sora-studio/internal/sora"
)

type listOptions struct {
	Limit int    `validate:"min=1,max=100"`
	Order string `validate:"oneof=asc desc"`
	After string `validate:"omitempty,max=128"`
}

type videoIDOptions struct {
	VideoID string `validate:"required"`
}

type downloadOptions struct {
	VideoID string `validate:"required"`
	Variant string `validate:"omitempty,oneof=video thumbnail spritesheet"`
}

// variantSuffix names the file a variant is saved to next to the video.
var variantSuffix = map[sora.Variant]string{
	sora.VariantVideo:       ".mp4",
	sora.VariantThumbnail:   "_thumbnail.webp",
	sora.VariantSpritesheet: "_spritesheet.jpg",
}

func (e *Env) runList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "number of videos to return")
	order := fs.String("order", "desc", "sort order: asc|desc")
	after := fs.String("after", "", "pagination cursor (video id)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := listOptions{Limit: *limit, Order: *order, After: strings.TrimSpace(*after)}
	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	list, err := e.service().ListRemote(ctx, sora.ListParams{After: opts.After, Limit: opts.Limit, Order: opts.Order})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(e.Out, list)
	}

	fmt.Fprintf(e.Out, "found %d video(s)\n", len(list.Data))
	if len(list.Data) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(e.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tCREATED\tPROMPT")
	for _, v := range list.Data {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n", v.ID, v.Status, v.Progress, formatUnix(v.CreatedAt), truncate(v.Prompt, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if list.HasMore {
		fmt.Fprintf(e.Out, "more: sora list --after %s\n", list.LastID)
	}
	return nil
}

func (e *Env) runRetrieve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("retrieve", flag.ContinueOnError)
	videoID := fs.String("video-id", "", "ID of the video to retrieve")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := videoIDOptions{VideoID: strings.TrimSpace(*videoID)}
	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	video, err := e.Client.GetVideo(ctx, opts.VideoID)
	if err != nil {
		return err
	}
	return printJSON(e.Out, video)
}

func (e *Env) runDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	videoID := fs.String("video-id", "", "ID of the video to delete")
	yes := fs.Bool("yes", false, "skip confirmation prompt")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := videoIDOptions{VideoID: strings.TrimSpace(*videoID)}
	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	if !*yes {
		ok, err := e.confirm(fmt.Sprintf("Are you sure you want to delete video '%s'? (yes/no): ", opts.VideoID))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(e.Out, "deletion cancelled")
			return nil
		}
	}

	result, err := e.service().DeleteRemote(ctx, opts.VideoID)
	if err != nil {
		return err
	}
	return printJSON(e.Out, result)
}

func (e *Env) runDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	videoID := fs.String("video-id", "", "ID of the video to download")
	output := fs.String("output", "", "write to this file instead of the archive")
	variant := fs.String("variant", "", "variant to write to a file: video|thumbnail|spritesheet")
	all := fs.Bool("all", false, "write video, thumbnail and spritesheet to files")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := downloadOptions{VideoID: strings.TrimSpace(*videoID), Variant: *variant}
	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	if *output == "" && opts.Variant == "" && !*all {
		result, err := e.service().Download(ctx, opts.VideoID)
		if err != nil {
			return err
		}
		if result.AlreadyExisted {
			fmt.Fprintf(e.Out, "already archived: %s\n", result.VideoPath)
			return nil
		}
		fmt.Fprintf(e.Out, "archived: %s\n", result.VideoPath)
		if result.ThumbnailPath != "" {
			fmt.Fprintf(e.Out, "thumbnail: %s\n", result.ThumbnailPath)
		}
		return nil
	}

	if *all {
		base := opts.VideoID
		if *output != "" {
			base = strings.TrimSuffix(*output, filepath.Ext(*output))
		}
		for _, v := range []sora.Variant{sora.VariantVideo, sora.VariantThumbnail, sora.VariantSpritesheet} {
			if err := e.saveVariant(ctx, opts.VideoID, v, base+variantSuffix[v]); err != nil {
				return err
			}
		}
		return nil
	}

	v := sora.Variant(opts.Variant)
	if v == "" {
		v = sora.VariantVideo
	}
	dst := *output
	if dst == "" {
		dst = opts.VideoID + variantSuffix[v]
	}
	return e.saveVariant(ctx, opts.VideoID, v, dst)
}

// saveVariant downloads one variant and writes it to dst.
func (e *Env) saveVariant(ctx context.Context, videoID string, variant sora.Variant, dst string) error {
	data, err := e.Client.DownloadContent(ctx, videoID, variant)
	if err != nil {
		return fmt.Errorf("download %s: %w", variant, err)
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	fmt.Fprintf(e.Out, "%s saved to: %s\n", variant, dst)
	return nil
}

// confirm asks a yes/no question on In.
func (e *Env) confirm(question string) (bool, error) {
	if e.In == nil {
		return false, fmt.Errorf("confirmation required (rerun with --yes)")
	}
	fmt.Fprint(e.Out, question)
	line, err := bufio.NewReader(e.In).ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func formatUnix(ts int64) string {
	if ts == 0 {
		return "n/a"
	}
	return time.Unix(ts, 0).UTC().Format(time.DateTime)
}
