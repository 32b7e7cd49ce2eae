package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"staychat/internal/config"
	"staychat/internal/models"
)

// AddAgent provisions a roster entry through the running admin API.
// The spec is "id:name" or "id:name:title"; the admin key is taken
// from the ADMIN_KEY environment variable.
func AddAgent(spec string, cfg *config.Config) error {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid agent spec %q, expected id:name or id:name:title", spec)
	}
	agent := models.SupportAgent{ID: parts[0], Name: parts[1]}
	if len(parts) == 3 {
		agent.Title = parts[2]
	}

	reqBody, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("http://%s/admin/agents", cfg.AdminAddr)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", os.Getenv("ADMIN_KEY"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call admin API: %w. Is the server running?", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to add agent (Status: %d): %s", resp.StatusCode, string(body))
	}

	fmt.Printf("\nAgent Created Successfully!\n")
	fmt.Printf("ID:    %s\n", agent.ID)
	fmt.Printf("Name:  %s\n", agent.Name)
	if agent.Title != "" {
		fmt.Printf("Title: %s\n", agent.Title)
	}
	return nil
}
