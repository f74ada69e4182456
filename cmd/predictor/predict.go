package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/race-time-predictor/internal/models"
)

var (
	predictAge      int
	predictGender   string
	predictCountry  string
	predictLocation string
	predictElite    bool
	predictSegment  string
)

func init() {
	predictCmd.Flags().IntVar(&predictAge, "age", -1, "Athlete age in years")
	predictCmd.Flags().StringVar(&predictGender, "gender", "", "Athlete gender (M or F)")
	predictCmd.Flags().StringVar(&predictCountry, "country", "", "Athlete country")
	predictCmd.Flags().StringVar(&predictLocation, "location", "", "Event location")
	predictCmd.Flags().BoolVar(&predictElite, "elite", false, "Athlete races in the elite category")
	predictCmd.Flags().StringVar(&predictSegment, "segment", "", "Predict a single segment (swim, bike, run, total)")

	_ = predictCmd.MarkFlagRequired("age")
	_ = predictCmd.MarkFlagRequired("gender")
	_ = predictCmd.MarkFlagRequired("country")
	_ = predictCmd.MarkFlagRequired("location")
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict segment times for one athlete and print them as JSON",
	Example: `  predictor predict --age 34 --gender M --country Spain --location Barcelona
  predictor predict --age 27 --gender F --country France --location Nice --elite --segment swim`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		p, err := buildPipeline(ctx, cfg, appLog)
		if err != nil {
			return err
		}
		defer p.Close()

		query := models.AthleteQuery{
			Age:           predictAge,
			Gender:        models.Gender(predictGender),
			Country:       predictCountry,
			EventLocation: predictLocation,
			IsElite:       predictElite,
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		if predictSegment != "" {
			segment := models.Segment(predictSegment)
			if !segment.IsValid() {
				return fmt.Errorf("unknown segment %q", predictSegment)
			}
			seconds, err := p.service.Predict(ctx, segment, query)
			if err != nil {
				return err
			}
			return encoder.Encode(models.SegmentPrediction{Segment: segment, Seconds: seconds})
		}

		set, err := p.service.PredictAll(ctx, query)
		if err != nil {
			return err
		}
		return encoder.Encode(set)
	},
}
