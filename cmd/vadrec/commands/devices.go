package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/vadrec/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	Long: `List the audio input devices PortAudio reports. A name (or part of one)
can be pinned with input_device or INPUT_DEVICE.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		devices, err := audio.Devices()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DEFAULT\tNAME\tCHANNELS\tRATE\tNOTE")
		for _, d := range devices {
			def := ""
			if d.IsDefault {
				def = "*"
			}
			note := ""
			if d.Loopback {
				note = "loopback, skipped"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.0f\t%s\n", def, d.Name, d.MaxInputChannels, d.DefaultSampleRate, note)
		}
		return tw.Flush()
	},
}
