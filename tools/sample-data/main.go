// Command sample-data generates a synthetic appointment history CSV for
// exercising the import, train, and predict endpoints locally.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

type profile struct {
	name     string
	showRate float64
	weight   int
}

var profiles = []profile{
	{name: "reliable", showRate: 0.95, weight: 4},
	{name: "mostly_reliable", showRate: 0.85, weight: 3},
	{name: "inconsistent", showRate: 0.60, weight: 2},
	{name: "unreliable", showRate: 0.30, weight: 1},
}

func main() {
	var (
		patients = flag.Int("patients", 200, "number of patients to generate")
		perMin   = flag.Int("min-appointments", 2, "minimum appointments per patient")
		perMax   = flag.Int("max-appointments", 12, "maximum appointments per patient")
		seed     = flag.Int64("seed", 7, "rng seed")
		out      = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fatal(err.Error())
		}
		defer f.Close()
		w = f
	}

	rng := rand.New(rand.NewSource(*seed))
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"patient_code", "appointment_datetime", "showed_up", "appointment_type", "phone", "email"}); err != nil {
		fatal(err.Error())
	}

	types := []string{"checkup", "cleaning", "followup", "consultation"}
	start := time.Now().UTC().AddDate(-1, 0, 0).Truncate(24 * time.Hour)
	rows := 0

	for i := 0; i < *patients; i++ {
		code := fmt.Sprintf("P%04d", i+1)
		p := pickProfile(rng)
		phone := fmt.Sprintf("+1555%07d", i+1)
		email := fmt.Sprintf("%s@example.com", code)

		n := *perMin + rng.Intn(*perMax-*perMin+1)
		at := start.AddDate(0, 0, rng.Intn(30))
		for j := 0; j < n; j++ {
			at = at.AddDate(0, 0, 7+rng.Intn(28))
			hour := 8 + rng.Intn(9)
			slot := time.Date(at.Year(), at.Month(), at.Day(), hour, 0, 0, 0, time.UTC)

			showProb := p.showRate
			// First visits and Monday mornings skew toward no-shows.
			if j == 0 {
				showProb -= 0.20
			}
			if slot.Weekday() == time.Monday && hour < 12 {
				showProb -= 0.10
			}
			showed := rng.Float64() < showProb

			if err := cw.Write([]string{
				code,
				slot.Format("2006-01-02 15:04:05"),
				strconv.FormatBool(showed),
				types[rng.Intn(len(types))],
				phone,
				email,
			}); err != nil {
				fatal(err.Error())
			}
			rows++
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		fatal(err.Error())
	}
	fmt.Fprintf(os.Stderr, "wrote %d rows for %d patients\n", rows, *patients)
}

func pickProfile(rng *rand.Rand) profile {
	total := 0
	for _, p := range profiles {
		total += p.weight
	}
	pick := rng.Intn(total)
	for _, p := range profiles {
		if pick < p.weight {
			return p
		}
		pick -= p.weight
	}
	return profiles[0]
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error: "+msg)
	os.Exit(1)
}
