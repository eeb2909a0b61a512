package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/fatih/color"
)

const (
	baseURL = "http://localhost:3000/api"
	appID   = "7b9a8a70-0d3e-4a6e-9a1f-0c2f5f6d14aa"
)

var userToken = os.Getenv("TEST_USER_TOKEN")

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url, token string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{} // No timeout: analyze streams can run long
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

// streamAnalyze POSTs an analyze request and prints SSE events as they arrive.
// Returns the session id reported by the first event.
func streamAnalyze(token string, body interface{}) (string, error) {
	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequest("POST", baseURL+"/apps/"+appID+"/requirements/v1/analyze", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "text/event-stream")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	color.Green("Status: %s", resp.Status)

	sessionID := ""
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			color.Cyan("  <stream done>")
			break
		}

		var ev struct {
			SessionId string      `json:"session_id"`
			Status    string      `json:"status"`
			Event     string      `json:"event"`
			Data      interface{} `json:"data"`
		}
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			color.Red("  bad event payload: %v", err)
			continue
		}
		if sessionID == "" {
			sessionID = ev.SessionId
		}

		switch ev.Event {
		case "content":
			fmt.Print(ev.Data)
		case "done":
			fmt.Println()
			color.Green("  done [%s/%s]:", ev.Status, ev.SessionId)
			prettyPrint(ev.Data)
		case "error":
			fmt.Println()
			color.Red("  error: %v", ev.Data)
		}
	}

	return sessionID, scanner.Err()
}

func main() {
	color.Cyan("🚀 Starting Requirement Analysis API Test\n")

	if userToken == "" {
		color.Red("TEST_USER_TOKEN is not set")
		os.Exit(1)
	}

	// 1. First turn (creates a session)
	color.Yellow("\n[USER] 1. Analyze: first turn")
	sessionID, err := streamAnalyze(userToken, map[string]interface{}{
		"input": "I want a game where players match colored tiles against the clock",
	})
	if err != nil || sessionID == "" {
		color.Red("Failed: %v (session=%q)", err, sessionID)
		os.Exit(1)
	}
	color.Green("Session created: %s", sessionID)

	// 2. Second turn against the same session
	color.Yellow("\n[USER] 2. Analyze: follow-up turn")
	if _, err := streamAnalyze(userToken, map[string]interface{}{
		"input":      "Make it multiplayer, up to four players",
		"session_id": sessionID,
	}); err != nil {
		color.Red("Failed: %v", err)
	}

	// 3. Read the session back
	color.Yellow("\n[USER] 3. Get session")
	resp, respBody, err := sendRequest("GET", "/apps/"+appID+"/requirements/v1/sessions/"+sessionID, userToken, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	var sessionRes map[string]interface{}
	json.Unmarshal(respBody, &sessionRes)
	prettyPrint(sessionRes)

	// 4. Advance session status
	color.Yellow("\n[USER] 4. Advance status to 'design'")
	resp, respBody, err = sendRequest("PUT", "/apps/"+appID+"/requirements/v1/sessions/"+sessionID+"/status", userToken, map[string]interface{}{
		"status": "design",
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var advanceRes map[string]interface{}
		json.Unmarshal(respBody, &advanceRes)
		prettyPrint(advanceRes)
	}

	// 5. Illegal jump should be rejected
	color.Yellow("\n[USER] 5. Illegal jump to 'workflow' (expect 400)")
	resp, _, err = sendRequest("PUT", "/apps/"+appID+"/requirements/v1/sessions/"+sessionID+"/status", userToken, map[string]interface{}{
		"status": "workflow",
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else if resp.StatusCode == http.StatusBadRequest {
		color.Green("Status: %s (rejected as expected)", resp.Status)
	} else {
		color.Red("Unexpected status: %s", resp.Status)
	}

	// 6. List sessions for app
	color.Yellow("\n[USER] 6. List sessions")
	resp, respBody, err = sendRequest("GET", "/apps/"+appID+"/requirements/v1/sessions", userToken, nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var listRes map[string]interface{}
		json.Unmarshal(respBody, &listRes)
		prettyPrint(listRes)
	}

	// 7. Delete session
	color.Yellow("\n[USER] 7. Delete session")
	resp, _, err = sendRequest("DELETE", "/apps/"+appID+"/requirements/v1/sessions/"+sessionID, userToken, nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
	}

	color.Cyan("\n✅ Test run finished")
}
