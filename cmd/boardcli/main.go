// Package main provides a CLI client for the board server, for testing.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("transit-boardcli", "Transit announcement board client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	// systems commands
	systemsCmd = app.Command("systems", "List announcement systems")

	selectSystemCmd = app.Command("select-system", "Load a system")
	selectSystemID  = selectSystemCmd.Arg("id", "System ID").Required().String()

	// model commands
	modelCmd = app.Command("model", "Show the active model")

	selectLineCmd = app.Command("select-line", "Select the active line")
	selectLineID  = selectLineCmd.Arg("id", "Line ID").Required().String()

	assignCmd  = app.Command("assign", "Assign uploaded or remote audio to a slot")
	assignSlot = assignCmd.Arg("slot", "Slot key (e.g. station-central)").Required().String()
	assignURL  = assignCmd.Arg("url", "Audio URL").Required().String()
	assignName = assignCmd.Flag("name", "Display name").String()

	categoryCmd   = app.Command("category", "Set a slot's announcement category")
	categorySlot  = categoryCmd.Arg("slot", "Slot key").Required().String()
	categoryValue = categoryCmd.Arg("category", "Category name").Required().String()

	undoCmd = app.Command("undo", "Undo the last edit")
	redoCmd = app.Command("redo", "Redo the last undone edit")

	// queue and playback commands
	queueCmd = app.Command("queue", "Show the playback queue")

	playCmd  = app.Command("play", "Play a single slot")
	playSlot = playCmd.Arg("slot", "Slot key").Required().String()

	playQueueCmd   = app.Command("play-queue", "Play the queue")
	playQueueIndex = playQueueCmd.Arg("index", "Start index").Default("0").Int()

	toggleCmd = app.Command("toggle", "Toggle queue playback")

	skipCmd  = app.Command("skip", "Skip forward or backward in the queue")
	skipStep = skipCmd.Arg("step", "Step (negative for backward)").Default("1").Int()

	stopCmd = app.Command("stop", "Stop all playback")

	speedCmd   = app.Command("speed", "Set playback speed")
	speedValue = speedCmd.Arg("speed", "Speed multiplier").Required().Float64()

	effectsCmd    = app.Command("effects", "Select an effects preset")
	effectsPreset = effectsCmd.Arg("preset", "Preset name").Required().String()

	statusCmd = app.Command("status", "Show playback status")

	// watch command
	watchCmd = app.Command("watch", "Stream board events")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case systemsCmd.FullCommand():
		printSystems()
	case selectSystemCmd.FullCommand():
		post("/api/systems/select", map[string]string{"id": *selectSystemID})
	case modelCmd.FullCommand():
		get("/api/model")
	case selectLineCmd.FullCommand():
		post("/api/lines/select", map[string]string{"id": *selectLineID})
	case assignCmd.FullCommand():
		name := *assignName
		if name == "" {
			name = *assignURL
		}
		post("/api/slots/"+*assignSlot+"/audio", map[string]string{
			"kind": "uploaded", "url": *assignURL, "name": name,
		})
	case categoryCmd.FullCommand():
		post("/api/slots/"+*categorySlot+"/category", map[string]string{"category": *categoryValue})
	case undoCmd.FullCommand():
		post("/api/history/undo", nil)
	case redoCmd.FullCommand():
		post("/api/history/redo", nil)
	case queueCmd.FullCommand():
		printQueue()
	case playCmd.FullCommand():
		post("/api/playback/play", map[string]string{"slot": *playSlot})
	case playQueueCmd.FullCommand():
		post("/api/playback/queue", map[string]int{"index": *playQueueIndex})
	case toggleCmd.FullCommand():
		post("/api/playback/toggle", nil)
	case skipCmd.FullCommand():
		post("/api/playback/skip", map[string]int{"step": *skipStep})
	case stopCmd.FullCommand():
		post("/api/playback/stop", nil)
	case speedCmd.FullCommand():
		post("/api/playback/speed", map[string]float64{"speed": *speedValue})
	case effectsCmd.FullCommand():
		post("/api/playback/effects", map[string]string{"preset": *effectsPreset})
	case statusCmd.FullCommand():
		get("/api/playback/")
	case watchCmd.FullCommand():
		watch()
	}
}

func request(method, path string, body any) map[string]any {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
	}
	req, err := http.NewRequest(method, *server+path, &buf)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		fmt.Printf("Error: invalid response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode >= 400 {
		fmt.Printf("Error [%d]: %v\n", resp.StatusCode, decoded["error"])
		os.Exit(1)
	}
	return decoded
}

func get(path string) {
	printJSON(request(http.MethodGet, path, nil))
}

func post(path string, body any) {
	printJSON(request(http.MethodPost, path, body))
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func printSystems() {
	body := request(http.MethodGet, "/api/systems", nil)
	active, _ := body["active"].(string)

	printGroup := func(label string, v any) {
		systems, _ := v.([]any)
		if len(systems) == 0 {
			return
		}
		fmt.Printf("%s:\n", label)
		for _, s := range systems {
			sys, _ := s.(map[string]any)
			marker := " "
			if sys["id"] == active {
				marker = "*"
			}
			fmt.Printf("  %s %-24v %v\n", marker, sys["id"], sys["name"])
		}
	}
	printGroup("Built-in systems", body["builtins"])
	printGroup("Custom systems", body["customs"])
}

func printQueue() {
	body := request(http.MethodGet, "/api/queue", nil)
	items, _ := body["items"].([]any)
	fmt.Printf("Queue (%v, %.0fs total, %.0fs remaining):\n",
		body["state"], asFloat(body["total_sec"]), asFloat(body["remaining_sec"]))
	current := int(asFloat(body["index"]))
	for i, it := range items {
		item, _ := it.(map[string]any)
		marker := " "
		if i == current {
			marker = ">"
		}
		fmt.Printf("  %s %2d. %-40v %4.0fs  %v\n",
			marker, i, item["slot"], asFloat(item["duration_sec"]), item["name"])
	}
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

// watch streams server-sent events and prints one line per notice.
func watch() {
	resp, err := http.Get(*server + "/api/events")
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Error: unexpected status %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Watching board events. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nStopping...")
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			fmt.Println(data)
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		fmt.Printf("Stream error: %v\n", err)
	}
}
