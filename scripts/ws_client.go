// Package main runs a demo WebSocket client: it submits an optimization job
// and prints progress events until the job reaches a terminal state.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)
	configID := os.Getenv("CONFIG_ID")
	if configID == "" {
		log.Fatal("CONFIG_ID is required")
	}

	body, _ := json.Marshal(map[string]any{"configurationId": configID})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/optimize-jobs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-Id", "t_demo")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()
	var submitted struct {
		JobID  string `json:"jobId"`
		Status string `json:"status"`
		Cached bool   `json:"cached"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		log.Fatal(err)
	}
	log.Printf("job %s status=%s cached=%v", submitted.JobID, submitted.Status, submitted.Cached)

	u := url.URL{
		Scheme:   "ws",
		Host:     "localhost:" + port,
		Path:     "/v1/jobs/progress/ws",
		RawQuery: "jobId=" + submitted.JobID,
	}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_demo")
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	deadline := time.After(5 * time.Minute)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var ev struct {
				Type     string `json:"type"`
				Status   string `json:"status"`
				Progress int    `json:"progress"`
				Note     string `json:"note"`
			}
			if err := c.ReadJSON(&ev); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("%s %s %d%% %s", ev.Type, ev.Status, ev.Progress, ev.Note)
			if ev.Type != "job.progress" {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-deadline:
		log.Println("timed out waiting for terminal event")
	}
}
