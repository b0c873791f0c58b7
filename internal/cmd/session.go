package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/opmodel/modload/internal/config"
	oerrors "github.com/opmodel/modload/internal/errors"
	"github.com/opmodel/modload/internal/output"
	"github.com/opmodel/modload/pkg/loader"
	"github.com/opmodel/modload/pkg/loader/jsengine"
)

// session is one loader and engine pair built from the effective configuration.
type session struct {
	loader *loader.Loader
	engine *jsengine.Engine
}

// newSession validates the effective configuration and creates a loader.
func newSession(g *GlobalConfig) (*session, error) {
	v, err := config.NewValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(g.Config); err != nil {
		return nil, wrapValidation(err)
	}

	engine := jsengine.New(jsengine.WithLogger(output.Logger()))
	opts := g.Config.LoaderOptions()
	opts.Logger = output.Logger()
	return &session{
		loader: loader.New(g.Fs, engine, loader.WithOptions(opts)),
		engine: engine,
	}, nil
}

// referrerFor converts the --from flag into a referrer and the directory it
// names. A directory gets a trailing separator so relative specifiers resolve
// inside it. An empty value means the working directory.
func referrerFor(from string) (referrer, dir string, err error) {
	switch {
	case strings.HasPrefix(from, "file:"):
		p, err := loader.FileURLToPath(from)
		if err != nil {
			return "", "", usageError("invalid --from URL %q: %v", from, err)
		}
		if strings.HasSuffix(from, "/") {
			p = filepath.Clean(p)
		} else {
			p = filepath.Dir(p)
		}
		return from, p, nil
	case from == "":
		wd, err := os.Getwd()
		if err != nil {
			return "", "", fmt.Errorf("getting working directory: %w", err)
		}
		return loader.PathToFileURL(wd + string(filepath.Separator)), wd, nil
	}

	abs, err := filepath.Abs(from)
	if err != nil {
		return "", "", err
	}
	if strings.HasSuffix(from, "/") || strings.HasSuffix(from, string(filepath.Separator)) {
		return loader.PathToFileURL(abs + string(filepath.Separator)), abs, nil
	}
	return loader.PathToFileURL(abs), filepath.Dir(abs), nil
}

// reportErrors prints each failure in detail and returns an ExitError carrying
// the exit code of the first one.
func reportErrors(w io.Writer, errs []error) error {
	var result *multierror.Error
	code := oerrors.ExitSuccess
	for _, err := range errs {
		if err == nil {
			continue
		}
		detailed := oerrors.FromLoadError(err)
		fmt.Fprintln(w, detailed.Error())
		if code == oerrors.ExitSuccess {
			code = oerrors.ExitCodeFromError(detailed)
		}
		result = multierror.Append(result, detailed)
	}
	if result == nil {
		return nil
	}
	return &oerrors.ExitError{Err: result, Code: code, Printed: true}
}

// wrapValidation turns aggregated config validation failures into a DetailError.
func wrapValidation(err error) error {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return fmt.Errorf("%w: %w", oerrors.ErrValidation, err)
	}
	lines := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		lines = append(lines, e.Error())
	}
	return &oerrors.DetailError{
		Type:    "validation failed",
		Message: strings.Join(lines, "\n  "),
		Hint:    "Run 'modload config vet' to check the configuration file.",
		Cause:   fmt.Errorf("%w: %w", oerrors.ErrValidation, err),
	}
}

func usageError(format string, args ...any) error {
	return &oerrors.ExitError{
		Err:  fmt.Errorf(format, args...),
		Code: oerrors.ExitGeneralError,
	}
}

func joinFormats(names []string) string {
	return strings.Join(names, ", ")
}

func addFromFlag(cmd *cobra.Command, from *string) {
	cmd.Flags().StringVar(from, "from", "", "Directory or file URL specifiers are resolved from (default: working directory)")
}
