package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/flash/internal/ensemble"
	apperrors "github.com/ZanzyTHEbar/flash/internal/errors"
)

// predictionOutput is the JSON printed by predict and camp.
type predictionOutput struct {
	PredictionID string `json:"prediction_id"`
	Timestamp    string `json:"timestamp"`
	ensemble.Result
}

func (c *cli) newPredictCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score one startup with the configured ensemble",
		Example: `  flashctl predict -i startup.json
  cat startup.json | flashctl predict -i -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runPredict(cmd, input, false)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file with the startup metrics, - for stdin")
	return cmd
}

func (c *cli) newCAMPCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "camp",
		Short: "Score one startup from the CAMP pillars alone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runPredict(cmd, input, true)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file with the startup metrics, - for stdin")
	return cmd
}

func (c *cli) runPredict(cmd *cobra.Command, input string, campOnly bool) error {
	raw, err := readStartup(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}

	eng, _, err := c.loadEngine()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var res ensemble.Result
	if campOnly {
		res, err = eng.Orchestrator.PredictCAMP(ctx, raw)
	} else {
		res, err = eng.Orchestrator.Predict(ctx, raw)
	}
	if err != nil {
		return err
	}

	return writeJSON(cmd.OutOrStdout(), predictionOutput{
		PredictionID: uuid.NewString(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Result:       res,
	})
}

func (c *cli) newNormalizeCmd() *cobra.Command {
	var input string
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Print the canonical 45-feature vector for a startup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readStartup(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			eng, _, err := c.loadEngine()
			if err != nil {
				return err
			}

			v := eng.Orchestrator.Normalize(raw)
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"features":     v.Map(),
				"defaulted":    v.Defaulted(),
				"completeness": v.Completeness(),
			})
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON file with the startup metrics, - for stdin")
	return cmd
}

// readStartup decodes a flat JSON object from path, or from stdin for "-".
func readStartup(stdin io.Reader, path string) (map[string]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, apperrors.NewValidationError("input must be a JSON object", err.Error())
	}
	if raw == nil {
		return nil, apperrors.NewValidationError("input must be a JSON object")
	}
	return raw, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
