package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/sugawarayuuta/sonnet"
)

type report struct {
	Config  Config   `json:"config"`
	Results []Result `json:"results"`
	OK      bool     `json:"ok"`
}

func newReport(cfg Config, results []Result) report {
	rep := report{Config: cfg, Results: results, OK: true}
	for _, r := range results {
		if !r.OK {
			rep.OK = false
		}
	}
	return rep
}

func (r report) writeJSON(w io.Writer) error {
	b, err := sonnet.Marshal(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func (r report) writeText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRUCTURE\tITEMS\tRECEIVED\tDUP\tMISSING\tDROPPED\tELAPSED\tOPS/S\tOK")
	for _, res := range r.Results {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%v\t%.0f\t%v\n",
			res.Structure, res.Items, res.Received, res.Duplicates, res.Missing,
			res.Dropped, res.Elapsed.Round(time.Microsecond), res.OpsPerSec, res.OK)
	}
	for _, res := range r.Results {
		if st := res.Ring; st != nil {
			fmt.Fprintf(tw, "%s ring: push %d (full %d, busy %d, contended %d, hops %d), pop %d (empty %d, busy %d, contended %d, hops %d)\n",
				res.Structure, st.PushAttempts, st.PushFailFull, st.PushFailBusy, st.PushContended, st.PushHops,
				st.PopAttempts, st.PopFailEmpty, st.PopFailBusy, st.PopContended, st.PopHops)
		}
		if res.Error != "" {
			fmt.Fprintf(tw, "%s error: %s\n", res.Structure, res.Error)
		}
	}
	return tw.Flush()
}
