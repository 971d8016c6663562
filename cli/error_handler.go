package cli

import (
	"fmt"
	"os"

	"github.com/grovetools/studio/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
	}
}

// Handle provides user-friendly error messages based on error type
func (h *ErrorHandler) Handle(err error) error {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(os.Stderr, "❌ Configuration not found. Create a studio.yml in your project root.\n")
		return err

	case errors.ErrCodeUnknownProject:
		if se, ok := err.(*errors.StudioError); ok {
			fmt.Fprintf(os.Stderr, "❌ Project '%v' is not open\n", se.Details["path"])
			fmt.Fprintf(os.Stderr, "Dispatch an OpenProject action first, or check 'studio state'.\n")
		}
		return err

	case errors.ErrCodeUnknownWorktree:
		if se, ok := err.(*errors.StudioError); ok {
			fmt.Fprintf(os.Stderr, "❌ Worktree '%v' not found\n", se.Details["worktreeId"])
		}
		return err

	case errors.ErrCodeUnknownSession:
		if se, ok := err.(*errors.StudioError); ok {
			fmt.Fprintf(os.Stderr, "❌ Terminal session '%v' is not alive\n", se.Details["sessionId"])
		}
		return err

	case errors.ErrCodeCompletionInFlight:
		fmt.Fprintf(os.Stderr, "❌ A chat completion is already streaming for this worktree\n")
		fmt.Fprintf(os.Stderr, "Wait for it to settle (or dispatch ClearChat) and resubmit.\n")
		return err

	case errors.ErrCodeStoreClosed:
		fmt.Fprintf(os.Stderr, "❌ The daemon is shutting down. Try 'studio daemon status'.\n")
		return err

	default:
		fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)

		if h.Verbose {
			if se, ok := err.(*errors.StudioError); ok {
				fmt.Fprintf(os.Stderr, "\nError details:\n%s\n", se.ToJSON())
			}
		}
		return err
	}
}
