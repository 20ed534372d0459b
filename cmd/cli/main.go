// Command cli is a small operator console for the judge service. It talks to
// the HTTP API and is mainly useful for poking at a running instance without
// a frontend.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

type console struct {
	baseURL string
	token   string
	client  *http.Client
	out     io.Writer
}

func main() {
	baseURL := flag.String("server", "http://127.0.0.1:8085", "judge service base URL")
	flag.Parse()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "judge> ",
		HistoryFile:     os.TempDir() + "/judge_cli_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init readline failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = rl.Close()
	}()

	c := &console{
		baseURL: strings.TrimRight(*baseURL, "/"),
		client:  &http.Client{Timeout: 3 * time.Minute},
		out:     rl.Stdout(),
	}

	fmt.Fprintln(c.out, "judge console, type 'help' for commands")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		args := strings.Fields(line)
		if args[0] == "exit" || args[0] == "quit" {
			break
		}
		if err := c.dispatch(args); err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

func (c *console) dispatch(args []string) error {
	switch args[0] {
	case "help":
		c.printHelp()
		return nil
	case "token":
		if len(args) != 2 {
			return fmt.Errorf("usage: token <jwt>")
		}
		c.token = args[1]
		fmt.Fprintln(c.out, "token set")
		return nil
	case "submit":
		if len(args) != 4 {
			return fmt.Errorf("usage: submit <problemId> <language> <sourceFile>")
		}
		return c.submit(args[1], args[2], args[3])
	case "status":
		if len(args) != 2 {
			return fmt.Errorf("usage: status <submissionId>")
		}
		return c.getJSON("/api/v1/judge/submissions/" + args[1] + "/status")
	case "get":
		if len(args) != 2 {
			return fmt.Errorf("usage: get <submissionId>")
		}
		return c.getJSON("/api/v1/judge/submissions/" + args[1])
	case "history":
		if len(args) != 2 {
			return fmt.Errorf("usage: history <userId>")
		}
		return c.getJSON("/api/v1/judge/submissions?userId=" + args[1])
	default:
		return fmt.Errorf("unknown command %q, type 'help'", args[0])
	}
}

func (c *console) printHelp() {
	fmt.Fprint(c.out, `commands:
  submit <problemId> <language> <sourceFile>   submit a solution and wait for the verdict
  status <submissionId>                        show the live run status
  get <submissionId>                           show a persisted submission
  history <userId>                             list recent submissions for a user
  token <jwt>                                  set the bearer token for requests
  exit
`)
}

func (c *console) submit(problemID, language, sourceFile string) error {
	code, err := os.ReadFile(sourceFile)
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	payload, err := json.Marshal(map[string]string{
		"problemId": problemID,
		"language":  language,
		"code":      string(code),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/v1/judge/submissions", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *console) getJSON(path string) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

func (c *console) do(req *http.Request) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "HTTP %d\n%s\n", resp.StatusCode, indentJSON(body))
	return nil
}

func indentJSON(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
