// fit-inspect decodes a FIT file through the upload pipeline's parser and
// processor and prints what would be persisted, without touching any backend.
package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/stridelog/server/pkg/domain/fit_parser"
	"github.com/stridelog/server/pkg/domain/processor"
	"github.com/stridelog/server/pkg/types"
)

func main() {
	inputPath := flag.String("input", "", "Path to FIT file")
	userID := flag.String("user", "inspect", "User ID to process under")
	showRecords := flag.Bool("records", false, "Print every processed record")
	flag.Parse()

	if *inputPath == "" {
		fmt.Println("Please provide input file with -input")
		os.Exit(1)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Printf("Failed to read file: %v\n", err)
		os.Exit(1)
	}

	tree, err := fit_parser.Parse(data)
	if err != nil {
		fmt.Printf("Failed to decode FIT file: %v\n", err)
		os.Exit(1)
	}

	processed, err := processor.Process(tree, *userID, *inputPath)
	if err != nil {
		fmt.Printf("Failed to process activity: %v\n", err)
		os.Exit(1)
	}

	a := processed.Activity
	fmt.Println("=== ACTIVITY ===")
	fmt.Printf("Name:      %s\n", a.Name)
	fmt.Printf("Sport:     %s / %s\n", a.Sport, a.SubSport)
	fmt.Printf("Start:     %s\n", a.StartTime.UTC().Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration:  %.0fs\n", a.TotalTime)
	fmt.Printf("Distance:  %.2f km\n", a.TotalDistance/1000)
	fmt.Printf("Device:    %s\n", a.DeviceName)
	if a.AvgSpeed != nil && a.MaxSpeed != nil {
		fmt.Printf("Speed:     avg %.2f / max %.2f m/s\n", *a.AvgSpeed, *a.MaxSpeed)
	}
	if a.AvgHeartRate != nil && a.MaxHeartRate != nil {
		fmt.Printf("HR:        avg %d / max %d bpm\n", *a.AvgHeartRate, *a.MaxHeartRate)
	}
	if a.AvgPower != nil && a.MaxPower != nil {
		fmt.Printf("Power:     avg %d / max %d W\n", *a.AvgPower, *a.MaxPower)
	}

	fmt.Printf("\n=== LAPS: %d ===\n", len(processed.Laps))
	lw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(lw, "#\tStart Time\tDuration\tDistance\tTrigger")
	fmt.Fprintln(lw, "-\t----------\t--------\t--------\t-------")
	for _, l := range processed.Laps {
		fmt.Fprintf(lw, "%d\t%s\t%.0fs\t%.2f km\t%s\n",
			l.LapIndex+1, l.StartTime.UTC().Format("15:04:05"), l.TotalElapsedTime, l.TotalDistance/1000, l.Trigger)
	}
	lw.Flush()

	fmt.Printf("\n=== RECORDS: %d ===\n", len(processed.Records))
	printQuality(processed.Records)

	if *showRecords {
		rw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(rw, "Timestamp\tLap\tSpeed\tHR\tPower\tQuality")
		for _, r := range processed.Records {
			fmt.Fprintf(rw, "%s\t%d\t%s\t%s\t%s\t%d\n",
				r.Timestamp.UTC().Format("15:04:05"), r.LapIndex,
				fmtFloat(r.Speed), fmtInt(r.HeartRate), fmtInt(r.Power), r.DataQuality)
		}
		rw.Flush()
	}

	for _, w := range processed.Warnings {
		fmt.Printf("\nWARNING: %s\n", w)
	}
}

func printQuality(records []*types.Record) {
	if len(records) == 0 {
		return
	}
	sum := 0
	low := 0
	for _, r := range records {
		sum += r.DataQuality
		if r.DataQuality < 50 {
			low++
		}
	}
	fmt.Printf("Data quality: avg %d, %d records below 50\n", sum/len(records), low)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
