package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"xpert-backend/internal/client"
	"xpert-backend/internal/config"
	"xpert-backend/internal/middleware"
	"xpert-backend/internal/models"
	"xpert-backend/internal/services"
)

const usage = `Usage: xpert <command> [flags]

Commands:
  chat     -role doctor|student "question"
  analyze  [-role R] [-message M] [-mock] [-debug] image
  health
  token    -secret S [-subject id] [-ttl 24h]

Global flags (before the command):
  -url     backend URL (XPERT_API_URL)
  -token   bearer token (XPERT_API_TOKEN)
`

func main() {
	cfg := config.Load()

	global := flag.NewFlagSet("xpert", flag.ExitOnError)
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	baseURL := global.String("url", cfg.APIURL, "backend URL")
	token := global.String("token", cfg.APIToken, "bearer token")
	global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	c := client.New(*baseURL, *token)
	ctx := context.Background()

	var err error
	switch args[0] {
	case "chat":
		err = runChat(ctx, c, args[1:])
	case "analyze":
		err = runAnalyze(ctx, c, args[1:])
	case "health":
		err = runHealth(ctx, c)
	case "token":
		err = runToken(args[1:], cfg.JWTSecret)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		global.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runChat(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	roleFlag := fs.String("role", "student", "doctor or student")
	fs.Parse(args)

	role, ok := services.ParseRole(*roleFlag)
	if !ok {
		return fmt.Errorf("role must be doctor or student, got %q", *roleFlag)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("chat needs a question")
	}

	printMarkdown(c.Ask(ctx, role, question))
	return nil
}

func runAnalyze(ctx context.Context, c *client.Client, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	role := fs.String("role", "", "force doctor or student")
	message := fs.String("message", "", "free text used for role detection")
	mock := fs.Bool("mock", false, "use the deterministic mock predictor")
	debug := fs.Bool("debug", false, "include raw model outputs")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("analyze needs exactly one image path")
	}

	resp, err := c.Analyze(ctx, client.AnalyzeParams{
		Path:    fs.Arg(0),
		Message: *message,
		Role:    *role,
		Mock:    *mock,
		Debug:   *debug,
	})
	if err != nil {
		return err
	}

	if !isTerminal() {
		return printJSON(resp)
	}
	printMarkdown(analysisMarkdown(resp))
	return nil
}

func runHealth(ctx context.Context, c *client.Client) error {
	h, err := c.Health(ctx)
	if err != nil {
		return err
	}
	return printJSON(h)
}

func runToken(args []string, defaultSecret string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	secret := fs.String("secret", defaultSecret, "HS256 secret (JWT_SECRET)")
	subject := fs.String("subject", "xpert-cli", "token subject")
	ttl := fs.Duration("ttl", 24*time.Hour, "token lifetime")
	fs.Parse(args)

	auth := middleware.NewJWTAuth(*secret)
	if !auth.Enabled() {
		return fmt.Errorf("a secret is required (-secret or JWT_SECRET)")
	}
	tok, err := auth.GenerateToken(*subject, *ttl)
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}
	fmt.Println(tok)
	return nil
}

func analysisMarkdown(r *models.AnalysisResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", r.Prediction)
	fmt.Fprintf(&b, "- **Role:** %s\n", r.Role)
	fmt.Fprintf(&b, "- **Pneumonia probability:** %.3f\n\n", r.PneumoniaProbability)
	fmt.Fprintf(&b, "%s\n", r.Message)
	if len(r.RawPreds) > 0 {
		fmt.Fprintf(&b, "\n```\nraw_preds: %v\n```\n", r.RawPreds)
	}
	return b.String()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// printMarkdown renders through glamour on a terminal and prints raw text
// when piped.
func printMarkdown(text string) {
	if !isTerminal() {
		fmt.Println(text)
		return
	}

	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 20 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-10),
	)
	if err != nil {
		fmt.Println(text)
		return
	}
	out, err := renderer.Render(text)
	if err != nil {
		fmt.Println(text)
		return
	}
	fmt.Print(out)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
