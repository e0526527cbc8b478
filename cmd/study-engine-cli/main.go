// Command study-engine is the command-line interface to the study engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if ui != nil {
			ui.Error("%v", err)
			if hint := hintFor(err); hint != "" {
				ui.Info("%s", hint)
			}
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

// hintFor suggests a next step for well-known failures.
func hintFor(err error) string {
	switch domain.KindOf(err) {
	case domain.KindUnsupportedFormat:
		return "Supported formats are PDF (.pdf), Word (.docx) and plain text (.txt)."
	case domain.KindDecodeError:
		return "Plain-text files must be UTF-8 encoded."
	case domain.KindLoadError, domain.KindCapabilityUnavailable:
		return "Check the model provider settings and API token (STUDY_MODEL_API_TOKEN)."
	case domain.KindDispatchFailure:
		return "The model service did not respond; try again shortly."
	}
	return ""
}
