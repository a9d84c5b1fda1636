package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moviescript/moviescript-web/internal/logging"
	"github.com/moviescript/moviescript-web/internal/predictor"
	"github.com/moviescript/moviescript-web/internal/submission"
)

var predictForm submission.Form

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Validate one submission and print the model's predictions as JSON",
	RunE:  runPredict,
}

func init() {
	f := predictCmd.Flags()
	f.StringVar(&predictForm.Title, "title", "", "Movie title")
	f.StringVar(&predictForm.Overview, "overview", "", "Plot overview (at least 80 characters)")
	f.StringArrayVar(&predictForm.Genres, "genre", nil, "Genre (repeatable)")
	f.StringArrayVar(&predictForm.Keywords, "keyword", nil, "Keyword (repeatable)")
	f.StringVar(&predictForm.CustomKeywords, "custom", "", "Additional space-separated keywords")
	f.StringVar(&predictForm.Budget, "budget", "", "Budget in USD, e.g. 50,000,000")
}

type predictOutput struct {
	Title       string            `json:"title"`
	Request     predictor.Request `json:"request"`
	Predictions predictor.Result  `json:"predictions"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	in, err := submission.Validate(predictForm)
	if err != nil {
		for _, msg := range submission.Messages(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), msg)
		}
		return exitCode(1)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	invoker := predictor.NewInvoker(a.handle, logging.WithComponent(a.logger, "invoker"))
	res, err := invoker.Invoke(cmd.Context(), in.Request())
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), submission.Messages(err)[0])
		var ie *predictor.InvocationError
		if errors.As(err, &ie) {
			return fmt.Errorf("prediction failed: %w", ie.Err)
		}
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(predictOutput{Title: in.Title, Request: in.Request(), Predictions: res})
}
