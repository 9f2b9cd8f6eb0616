package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"score-scan/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "scorescan",
	Short: "Guitar score image recognition",
	Long: `scorescan reads a raster image of a guitar score (standard staff,
six-line tablature, paired staff+tab, or numbered jianpu notation) and
emits the recognized note stream with header metadata as JSON.`,
}

// Execute runs the root command.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default scorescan.yaml in the working directory)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log pipeline stages")
	cobra.CheckErr(viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the optional config file and the SCORESCAN_*
// environment overrides. Flags beat env, env beats file.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scorescan")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("scorescan")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && viper.GetBool("verbose") {
		fmt.Println("using config file:", viper.ConfigFileUsed())
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scorescan %s (commit %s, built %s)\n",
			version.Version, version.GitCommit, version.BuildTime)
	},
}
