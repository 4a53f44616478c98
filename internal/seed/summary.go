package seed

import (
	"fmt"
	"io"
	"time"

	"matcha/internal/observability"
)

// Summary aggregates the per-user results of a run.
type Summary struct {
	Requested  int
	Succeeded  int
	Failed     int
	RolledBack int
	Duration   time.Duration
	Results    []Result

	EmailDomain string
	Password    string
	DryRun      bool
}

// discard relabels the given results as rolled back so Succeeded keeps
// matching the committed row count. It returns how many were relabelled.
func (s *Summary) discard(indexes []int) int {
	n := 0
	for _, i := range indexes {
		r := &s.Results[i]
		if r.Outcome != OutcomeCreated {
			continue
		}
		r.Outcome = OutcomeRolledBack
		r.Reason = ReasonBatchRollback
		r.UserID = 0
		s.Succeeded--
		s.RolledBack++
		n++
		observability.SeedUsersTotal.WithLabelValues(string(OutcomeRolledBack)).Inc()
	}
	return n
}

// Failures returns the results that did not end up committed.
func (s *Summary) Failures() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Outcome != OutcomeCreated {
			out = append(out, r)
		}
	}
	return out
}

// Print writes the end-of-run report, including the shared test credentials.
func (s *Summary) Print(w io.Writer) {
	if s.DryRun {
		fmt.Fprintf(w, "\n🧪 Dry run: generated %d of %d users, nothing was written.\n", s.Succeeded, s.Requested)
	} else {
		fmt.Fprintf(w, "\n✅ Successfully created %d users!\n", s.Succeeded)
	}
	if s.Failed > 0 || s.RolledBack > 0 {
		fmt.Fprintf(w, "⚠️  %d failed, %d rolled back with their batch\n", s.Failed, s.RolledBack)
	}
	fmt.Fprintln(w, "📍 All users have locations assigned")
	fmt.Fprintln(w, "🏷️  All users have tags assigned")
	fmt.Fprintln(w, "⭐ All users have fame ratings")
	fmt.Fprintf(w, "⏱️  Took %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintln(w, "\n🔑 Test credentials:")
	fmt.Fprintf(w, "   Email: any user email @%s\n", s.EmailDomain)
	fmt.Fprintf(w, "   Password: %s\n", s.Password)
}
