package model

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pwscan/pwscan-go/pkg/props"
)

// WriteText prints the devices as a table followed by the settings record.
func WriteText(w io.Writer, r Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Devices (%d):\n", len(r.Devices))
	if len(r.Devices) > 0 {
		fmt.Fprintln(tw, "  ID\tDIRECTION\tNAME\tNICK\tDESCRIPTION\tCHANNELS\tLIMIT")
		for _, d := range r.Devices {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\t%d\t%d\n",
				d.ID, d.Direction, d.NodeName, d.NickName, d.Description, d.Channels, d.BufferLimit)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if !r.HasSettings {
		_, err := fmt.Fprintln(w, "Settings: not found")
		return err
	}

	s := r.Settings
	fmt.Fprintln(w, "Settings:")
	tw = tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyClockRate, s.Rate)
	fmt.Fprintf(tw, "  %s:\t%s\n", KeyClockAllowedRates, props.FormatUint32List(s.AllowedRates))
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyClockQuantum, s.Quantum)
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyClockMinQuantum, s.MinQuantum)
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyClockMaxQuantum, s.MaxQuantum)
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyClockForceQuantum, s.ForceQuantum)
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyClockForceRate, s.ForceRate)
	fmt.Fprintf(tw, "  %s:\t%d\n", KeyLogLevel, s.LogLevel)
	return tw.Flush()
}

// WriteJSON prints r as indented JSON.
func WriteJSON(w io.Writer, r Result) error {
	if r.Devices == nil {
		r.Devices = []Device{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
