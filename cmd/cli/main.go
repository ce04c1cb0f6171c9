package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "aquarium":
		handleAquarium(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: aquamonitor auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerUser(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleAquarium(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: aquamonitor aquarium <list|show|delete>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "list":
		listAquariums(args[1:])
	case "show":
		showAquarium(args[1:])
	case "delete":
		deleteAquarium(args[1:])
	default:
		fmt.Printf("unknown aquarium command: %s\n", subCmd)
	}
}

// Auth commands
func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "username")
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *username == "" || *password == "" {
		fmt.Println("Error: username, email, and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"username": *username,
		"email":    *email,
		"password": *password,
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/users", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == http.StatusCreated {
		fmt.Printf("Registered %s, now log in\n", *username)
	} else {
		fmt.Printf("Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("username", "", "username")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *username == "" || *password == "" {
		fmt.Println("Error: username and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"username": *username, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/token", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == http.StatusOK {
		if token, ok := result["token"].(string); ok {
			saveState("token", token)
			fmt.Printf("Logged in as %s (token valid until %v)\n", *username, result["expiration"])
		}
	} else {
		fmt.Printf("Login failed: %v\n", result)
	}
}

func logoutUser() {
	os.RemoveAll(stateDir())
	fmt.Println("Logged out")
}

func whoAmI() {
	token := loadState("token")
	if token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Printf("Logged in (token: %s...)\n", token[:20])
}

// Aquarium commands
func listAquariums(args []string) {
	_ = args
	req, _ := http.NewRequest("GET", getAPIURL()+"/aquariums", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result struct {
		Aquariums []map[string]interface{} `json:"aquariums"`
	}
	json.NewDecoder(resp.Body).Decode(&result)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tVOLUME\tCREATED")
	for _, a := range result.Aquariums {
		fmt.Fprintf(w, "%v\t%v\t%v\t%v %v\t%v\n",
			a["id"], a["name"], a["type"], a["volume"], a["volumeUnit"], a["createdAt"])
	}
	w.Flush()
}

func showAquarium(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: aquamonitor aquarium show <id>")
		return
	}
	id := args[0]

	req, _ := http.NewRequest("GET", getAPIURL()+"/aquariums/"+id, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Failed: %v\n", result)
		return
	}

	// Remember the version tag so a later delete can be conditional.
	if tag := resp.Header.Get("ETag"); tag != "" {
		saveState("etag-"+id, tag)
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))
}

func deleteAquarium(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: aquamonitor aquarium delete <id>")
		return
	}
	id := args[0]

	req, _ := http.NewRequest("DELETE", getAPIURL()+"/aquariums/"+id, nil)
	addAuthHeader(req)
	if tag := loadState("etag-" + id); tag != "" {
		req.Header.Set("If-Match", tag)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		os.Remove(filepath.Join(stateDir(), "etag-"+id))
		fmt.Printf("Deleted aquarium %s\n", id)
	case http.StatusPreconditionFailed:
		fmt.Println("Aquarium changed since you last looked; run show again and retry")
	default:
		var result map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&result)
		fmt.Printf("Delete failed: %v\n", result)
	}
}

// Helper functions
func getAPIURL() string {
	if url := os.Getenv("AQUAMONITOR_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func stateDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".aquamonitor")
}

func saveState(name, value string) error {
	os.MkdirAll(stateDir(), 0700)
	return os.WriteFile(filepath.Join(stateDir(), name), []byte(value), 0600)
}

func loadState(name string) string {
	data, _ := os.ReadFile(filepath.Join(stateDir(), name))
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadState("token")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`AquaMonitor CLI

Usage:
  aquamonitor <command> [options]

Commands:
  auth      User authentication (register, login, logout, who)
  aquarium  Aquarium operations (list, show, delete)
  help      Show this help message

Environment Variables:
  AQUAMONITOR_API    API endpoint (default: http://localhost:8080/api)

Examples:
  aquamonitor auth register -username alice -email alice@example.com -password pass
  aquamonitor auth login -username alice -password pass
  aquamonitor aquarium list
  aquamonitor aquarium show 7
  aquamonitor aquarium delete 7
`)
}
