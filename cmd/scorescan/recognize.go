package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"score-scan/internal/music"
	"score-scan/internal/pipeline"
	"score-scan/internal/preprocess"
)

func init() {
	f := recognizeCmd.Flags()
	f.StringP("type", "t", "auto", "score type: auto, tab, staff, jianpu, combined")
	f.StringP("key", "k", "C", "reference key for jianpu pitch mapping")
	f.String("scale", "major", "jianpu scale type (major, minor, harmonic minor, ...)")
	f.String("clef", "treble", "staff clef: treble or bass")
	f.String("binarize", "adaptive", "binarization: adaptive, otsu, sauvola, none")
	f.Bool("no-header", false, "skip header metadata extraction")
	f.Bool("no-chords", false, "skip chord symbol detection")
	f.Bool("no-techniques", false, "skip playing technique detection")
	f.Bool("no-octave-dots", false, "skip jianpu octave dot detection")
	f.Bool("no-duration-lines", false, "skip jianpu duration underline detection")
	f.Bool("no-line-removal", false, "keep ruled lines during glyph analysis")
	f.StringP("output", "o", "", "write JSON to file instead of stdout")
	f.Bool("pretty", false, "indent the JSON output")

	for _, key := range []string{
		"type", "key", "scale", "clef", "binarize",
		"no-header", "no-chords", "no-techniques", "no-octave-dots", "no-duration-lines",
		"no-line-removal",
	} {
		cobra.CheckErr(viper.BindPFlag(key, f.Lookup(key)))
	}

	rootCmd.AddCommand(recognizeCmd)
}

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>",
	Short: "Recognize a score image and print the event stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := optionsFromConfig()
		if err != nil {
			return err
		}
		if viper.GetBool("verbose") {
			opts.Verbose = true
			opts.Preprocess.Verbose = true
			opts.Progress = pipeline.ProgressFunc(func(phase string, percent int) {
				fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", percent, phase)
			})
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		p := pipeline.New(opts)
		res, err := p.RecognizeFile(ctx, args[0])
		if res == nil && err != nil {
			return err
		}
		if err != nil {
			// Partial or empty results still print; the error goes to stderr.
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		return writeResult(cmd, res)
	},
}

// optionsFromConfig builds pipeline options from the merged flag, env
// and config file settings.
func optionsFromConfig() (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()

	typ, err := pipeline.ParseScoreType(viper.GetString("type"))
	if err != nil {
		return opts, err
	}
	scale, err := music.ParseScaleType(viper.GetString("scale"))
	if err != nil {
		return opts, err
	}
	clef, err := music.ParseClef(viper.GetString("clef"))
	if err != nil {
		return opts, err
	}
	method, err := preprocess.ParseBinarizeMethod(viper.GetString("binarize"))
	if err != nil {
		return opts, err
	}

	opts.Type = typ
	opts.Key = viper.GetString("key")
	opts.Scale = scale
	opts.Clef = clef
	opts.Preprocess.Method = method
	opts.DetectHeader = !viper.GetBool("no-header")
	opts.DetectChords = !viper.GetBool("no-chords")
	opts.DetectTechniques = !viper.GetBool("no-techniques")
	opts.DetectOctaveDots = !viper.GetBool("no-octave-dots")
	opts.DetectDurationLines = !viper.GetBool("no-duration-lines")
	opts.RemoveStaffLines = !viper.GetBool("no-line-removal")
	return opts, nil
}

func writeResult(cmd *cobra.Command, res *pipeline.Result) error {
	var data []byte
	var err error
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		data, err = json.MarshalIndent(res, "", "  ")
	} else {
		data, err = json.Marshal(res)
	}
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		return os.WriteFile(out, data, 0o644)
	}
	_, err = os.Stdout.Write(data)
	return err
}
