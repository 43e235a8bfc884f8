package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/maauso/sora-studio/internal/job"
	"github.com/maauso/sora-studio/internal/sora"
)

// createOptions can also be read from a JSON file with --file.
type createOptions struct {
	Prompt         string `json:"prompt" validate:"required"`
	Model          string `json:"model" validate:"omitempty,max=64"`
	Seconds        string `json:"seconds" validate:"omitempty,numeric"`
	Size           string `json:"size" validate:"omitempty,max=16"`
	InputReference string `json:"input_reference"`
	Wait           bool   `json:"wait"`
}

type remixOptions struct {
	VideoID string `validate:"required"`
	Prompt  string `validate:"required"`
}

type waitOptions struct {
	VideoID  string `validate:"required"`
	Interval int    `validate:"min=1"`
	Timeout  int    `validate:"min=1"`
}

func (e *Env) runCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	file := fs.String("file", "", "JSON file with creation parameters")
	prompt := fs.String("prompt", "", "video generation prompt")
	model := fs.String("model", "", "model to use (default: SORA_DEFAULT_MODEL)")
	seconds := fs.String("seconds", "", "video duration in seconds")
	size := fs.String("size", "", "video resolution, e.g. 1280x720")
	reference := fs.String("reference", "", "reference image (.jpg, .png, .webp)")
	wait := fs.Bool("wait", false, "wait for completion and archive the video")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var opts createOptions
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			return fmt.Errorf("read parameters file: %w", err)
		}
		if err := json.Unmarshal(data, &opts); err != nil {
			return fmt.Errorf("parse parameters file: %w", err)
		}
	}
	opts.Prompt = firstNonEmpty(strings.TrimSpace(*prompt), opts.Prompt)
	opts.Model = firstNonEmpty(*model, opts.Model)
	opts.Seconds = firstNonEmpty(*seconds, opts.Seconds)
	opts.Size = firstNonEmpty(*size, opts.Size)
	opts.InputReference = firstNonEmpty(*reference, opts.InputReference)
	opts.Wait = opts.Wait || *wait

	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	if opts.Wait {
		svc := e.service()
		task, err := svc.SubmitCreate(ctx, job.CreateInput{
			Prompt:        opts.Prompt,
			Model:         opts.Model,
			Seconds:       opts.Seconds,
			Size:          opts.Size,
			ReferencePath: opts.InputReference,
		})
		if err != nil {
			return err
		}
		return e.followTask(ctx, svc, task.ID, *jsonOut)
	}

	video, err := e.Client.CreateVideo(ctx, sora.CreateParams{
		Prompt:         opts.Prompt,
		Model:          firstNonEmpty(opts.Model, e.DefaultModel),
		InputReference: opts.InputReference,
		Seconds:        opts.Seconds,
		Size:           opts.Size,
	})
	if err != nil {
		return err
	}
	return e.printSubmitted(video, *jsonOut)
}

func (e *Env) runRemix(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remix", flag.ContinueOnError)
	videoID := fs.String("video-id", "", "ID of the video to remix")
	prompt := fs.String("prompt", "", "remix prompt")
	wait := fs.Bool("wait", false, "wait for completion and archive the video")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := remixOptions{VideoID: strings.TrimSpace(*videoID), Prompt: strings.TrimSpace(*prompt)}
	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	if *wait {
		svc := e.service()
		task, err := svc.SubmitRemix(ctx, job.RemixInput{VideoID: opts.VideoID, Prompt: opts.Prompt})
		if err != nil {
			return err
		}
		return e.followTask(ctx, svc, task.ID, *jsonOut)
	}

	video, err := e.Client.RemixVideo(ctx, opts.VideoID, opts.Prompt)
	if err != nil {
		return err
	}
	return e.printSubmitted(video, *jsonOut)
}

func (e *Env) runWait(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	videoID := fs.String("video-id", "", "ID of the video to wait for")
	interval := fs.Int("interval", 3, "polling interval in seconds")
	timeout := fs.Int("timeout", 600, "maximum wait time in seconds")
	noSave := fs.Bool("no-save", false, "do not archive the video when complete")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(e.Out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := waitOptions{VideoID: strings.TrimSpace(*videoID), Interval: *interval, Timeout: *timeout}
	if err := validateOptions(opts); err != nil {
		fs.Usage()
		return err
	}

	svc := e.service(
		job.WithPollInterval(time.Duration(opts.Interval)*time.Second),
		job.WithPollTimeout(time.Duration(opts.Timeout)*time.Second),
	)

	video, err := svc.Await(ctx, opts.VideoID, func(v *sora.Video) {
		if !*jsonOut {
			fmt.Fprintf(e.Out, "status: %s progress: %d%%\n", v.Status, v.Progress)
		}
	})
	if err != nil {
		if errors.Is(err, job.ErrRemoteJobFailed) && *jsonOut && video != nil {
			_ = printJSON(e.Out, video)
		}
		return err
	}

	if *jsonOut {
		if err := printJSON(e.Out, video); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(e.Out, "video_id: %s\nstatus: %s\n", video.ID, video.Status)
	}

	if *noSave {
		return nil
	}
	result, err := svc.Download(ctx, video.ID)
	if err != nil {
		return err
	}
	if !*jsonOut {
		fmt.Fprintf(e.Out, "archived: %s\n", result.VideoPath)
	}
	return nil
}

// followTask prints progress of a background task until it ends.
func (e *Env) followTask(ctx context.Context, svc *job.Service, taskID string, jsonOut bool) error {
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()

	ticker := time.NewTicker(e.reportInterval())
	defer ticker.Stop()

	lastProgress, lastMessage := -1, ""
	report := func() {
		if jsonOut {
			return
		}
		t, err := svc.GetTask(ctx, taskID)
		if err != nil || (t.Progress == lastProgress && t.Message == lastMessage) {
			return
		}
		lastProgress, lastMessage = t.Progress, t.Message
		fmt.Fprintf(e.Out, "[%3d%%] %s\n", t.Progress, t.Message)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report()
		case <-done:
			report()
			return e.printTask(ctx, svc, taskID, jsonOut)
		}
	}
}

func (e *Env) printTask(ctx context.Context, svc *job.Service, taskID string, jsonOut bool) error {
	t, err := svc.GetTask(ctx, taskID)
	if err != nil {
		return err
	}

	if jsonOut {
		if err := printJSON(e.Out, t); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(e.Out, "job_id: %s\n", t.ID)
		fmt.Fprintf(e.Out, "status: %s\n", t.Status)
		if t.RemoteVideoID != "" {
			fmt.Fprintf(e.Out, "video_id: %s\n", t.RemoteVideoID)
		}
		if t.VideoPath != "" {
			fmt.Fprintf(e.Out, "video_path: %s\n", t.VideoPath)
		}
	}

	if t.Status != job.StatusCompleted {
		return fmt.Errorf("task %s ended %s: %s", t.ID, t.Status, t.Message)
	}
	return nil
}

func (e *Env) printSubmitted(v *sora.Video, jsonOut bool) error {
	if jsonOut {
		return printJSON(e.Out, v)
	}
	fmt.Fprintf(e.Out, "video_id: %s\n", v.ID)
	fmt.Fprintf(e.Out, "status: %s\n", v.Status)
	fmt.Fprintf(e.Out, "next: sora wait --video-id %s\n", v.ID)
	return nil
}
