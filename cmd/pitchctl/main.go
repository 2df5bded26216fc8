package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/seedling/pitch-platform/internal/client/api"
	"github.com/seedling/pitch-platform/internal/client/cache"
	"github.com/seedling/pitch-platform/internal/client/guard"
	clientscoring "github.com/seedling/pitch-platform/internal/client/scoring"
	"github.com/seedling/pitch-platform/internal/client/session"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/scoring"
)

// termNav satisfies the client's navigator in a terminal: there is no login
// screen to be "at", a redirect is a printed instruction.
type termNav struct{}

func (termNav) AtLogin() bool { return false }
func (termNav) RedirectLogin() {
	fmt.Fprintln(os.Stderr, "Session expired. Run `pitchctl login` to continue.")
}

type app struct {
	api   *api.Client
	cache *cache.Cache
	sess  *session.Store
	guard *guard.Guard
}

func main() {
	base := envOr("API_BASE_URL", "http://localhost:8000")
	baseFlag := flag.String("base", base, "API base URL")
	flag.Parse()

	c := cache.New()
	sess := session.New(tokenPath(), c)
	if err := sess.Hydrate(); err != nil {
		fatalf("load session: %v", err)
	}
	a := &app{
		api:   api.New(*baseFlag, sess, termNav{}),
		cache: c,
		sess:  sess,
		guard: guard.New(sess),
	}
	a.registerFetchers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}
	switch args[0] {
	case "login":
		a.login(ctx, args[1:])
	case "logout":
		a.api.Logout()
		fmt.Println("Logged out.")
	case "whoami":
		a.whoami(ctx)
	case "competitions":
		a.competitions(ctx)
	case "assignments":
		a.assignments(ctx)
	case "submissions":
		a.submissions(ctx, args[1:])
	case "score":
		a.score(ctx, args[1:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pitchctl [-base URL] <command>

commands:
  login -u USER -p PASS        authenticate and store the session token
  logout                       drop the session
  whoami                       show the current user
  competitions                 list competitions
  assignments                  list your judging assignments (judge)
  submissions COMPETITION_ID   list a competition's submissions for scoring
  score SUBMISSION_ID -competition ID -scores k=v,k=v -feedback TEXT`)
	os.Exit(2)
}

func (a *app) registerFetchers() {
	a.cache.Register(cache.KeyAssignments, func(ctx context.Context) (any, error) {
		var out []schemas.CompetitionAssignments
		if err := a.api.Get(ctx, "/judging/assignments", &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (a *app) registerCompetitionFetchers(competitionID int64) {
	a.cache.Register(cache.KeyCompetitionSubmissions(competitionID), func(ctx context.Context) (any, error) {
		var out []schemas.SubmissionWithScores
		path := fmt.Sprintf("/judging/competitions/%d/submissions", competitionID)
		if err := a.api.Get(ctx, path, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (a *app) registerSubmissionFetcher(submissionID int64) {
	a.cache.Register(cache.KeySubmission(submissionID), func(ctx context.Context) (any, error) {
		var out schemas.SubmissionWithScores
		path := fmt.Sprintf("/judging/submissions/%d", submissionID)
		if err := a.api.Get(ctx, path, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (a *app) login(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	user := fs.String("u", "", "username or email")
	pass := fs.String("p", "", "password")
	_ = fs.Parse(args)
	if *user == "" || *pass == "" {
		fatalf("login requires -u and -p")
	}
	if err := a.api.Login(ctx, *user, *pass); err != nil {
		fatalf("login failed: %v", err)
	}
	fmt.Printf("Logged in as %s (%s)\n", *user, a.sess.Role())
}

func (a *app) whoami(ctx context.Context) {
	if d := a.guard.Require(); d.RedirectLogin {
		fatalf("not logged in")
	}
	var me schemas.UserOut
	if err := a.api.Get(ctx, "/users/me", &me); err != nil {
		fatalf("%v", err)
	}
	printJSON(me)
}

func (a *app) competitions(ctx context.Context) {
	if d := a.guard.Require(); d.RedirectLogin {
		fatalf("not logged in")
	}
	var comps []schemas.CompetitionOut
	if err := a.api.Get(ctx, "/competitions", &comps); err != nil {
		fatalf("%v", err)
	}
	for _, c := range comps {
		fmt.Printf("%4d  %-10s  %-30s  entries %d/%d  deadline %s\n",
			c.ID, c.Status, c.Title, c.CurrentEntries, c.MaxEntries, c.Deadline.Format("2006-01-02"))
	}
}

func (a *app) assignments(ctx context.Context) {
	if d := a.guard.RequireRole(schemas.RoleJudge, schemas.RoleAdmin); !d.Allowed {
		denied(d)
	}
	v, err := a.cache.Get(ctx, cache.KeyAssignments)
	if err != nil {
		fatalf("%v", err)
	}
	groups := v.([]schemas.CompetitionAssignments)
	for _, g := range groups {
		fmt.Printf("%s (%d/%d scored)\n", g.Competition.Title, g.Completed, g.Total)
		for _, sub := range g.Submissions {
			mark := " "
			if sub.HasScored {
				mark = "x"
			}
			fmt.Printf("  [%s] %4d  %-30s  by %s\n", mark, sub.ID, sub.Title, sub.User.Username)
		}
	}
}

func (a *app) submissions(ctx context.Context, args []string) {
	if len(args) < 1 {
		usage()
	}
	if d := a.guard.RequireRole(schemas.RoleJudge, schemas.RoleAdmin); !d.Allowed {
		denied(d)
	}
	compID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fatalf("invalid competition id %q", args[0])
	}
	a.registerCompetitionFetchers(compID)
	v, err := a.cache.Get(ctx, cache.KeyCompetitionSubmissions(compID))
	if err != nil {
		fatalf("%v", err)
	}
	subs := v.([]schemas.SubmissionWithScores)
	for _, sub := range subs {
		score := "-"
		if sub.FinalScore != nil {
			score = fmt.Sprintf("%.2f", *sub.FinalScore)
		}
		fmt.Printf("%4d  %-30s  by %-15s  score %s\n", sub.ID, sub.Title, sub.FounderUsername, score)
	}
}

func (a *app) score(ctx context.Context, args []string) {
	if len(args) < 1 {
		usage()
	}
	if d := a.guard.RequireRole(schemas.RoleJudge, schemas.RoleAdmin); !d.Allowed {
		denied(d)
	}
	subID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fatalf("invalid submission id %q", args[0])
	}

	fs := flag.NewFlagSet("score", flag.ExitOnError)
	compID := fs.Int64("competition", 0, "competition id")
	rawScores := fs.String("scores", "", "comma separated criterion=score pairs")
	feedback := fs.String("feedback", "", "feedback text")
	_ = fs.Parse(args[1:])
	if *compID == 0 || *rawScores == "" {
		fatalf("score requires -competition and -scores")
	}

	var comp schemas.CompetitionOut
	if err := a.api.Get(ctx, fmt.Sprintf("/competitions/%d", *compID), &comp); err != nil {
		fatalf("%v", err)
	}
	rubric := scoring.ParseRubric(comp.Rubric)

	a.registerCompetitionFetchers(*compID)
	a.registerSubmissionFetcher(subID)

	form := clientscoring.New(a.api, a.cache, *compID, subID, rubric)

	// Pre-fill and lock if this judge scored already.
	var detail schemas.SubmissionWithScores
	if err := a.api.Get(ctx, fmt.Sprintf("/judging/submissions/%d", subID), &detail); err == nil {
		if uid, err := a.sess.UserID(); err == nil {
			form.Hydrate(scoring.JudgeEntry(detail.HumanScores, uid))
		}
	}
	if form.Locked() {
		fatalf("you already scored this submission")
	}

	for _, pair := range strings.Split(*rawScores, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			fatalf("bad score pair %q, want criterion=value", pair)
		}
		form.SetScore(k, v)
	}
	form.SetFeedback(*feedback)

	if errs := form.Validate(); len(errs) > 0 {
		for field, msg := range errs {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
		fatalf("fix the fields above and retry")
	}

	fmt.Printf("Weighted average: %.2f\n", form.WeightedAverage())
	if err := form.Submit(ctx); err != nil {
		fatalf("submit: %v", err)
	}
	fmt.Println("Scores submitted.")
}

func denied(d guard.Decision) {
	if d.RedirectLogin {
		fatalf("not logged in")
	}
	fatalf("%v (try %s)", d.Denied, d.Denied.HomePath)
}

func tokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "pitchctl", "token")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
