package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// rpcRequest is a JSON-RPC 2.0 request or notification
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type session struct {
	stdin  io.Writer
	stdout *bufio.Reader
	nextID int
}

func (s *session) send(method string, params interface{}, notify bool) (*rpcResponse, error) {
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params}
	if !notify {
		s.nextID++
		req.ID = s.nextID
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	fmt.Printf("-> %s\n", payload)
	if _, err := s.stdin.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write %s: %w", method, err)
	}
	if notify {
		return nil, nil
	}

	line, err := s.stdout.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	var resp rpcResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse %s response: %w (raw %s)", method, err, line)
	}
	if resp.Error != nil {
		return &resp, fmt.Errorf("%s failed: %d %s", method, resp.Error.Code, resp.Error.Message)
	}
	return &resp, nil
}

func printResult(label string, resp *rpcResponse) {
	var pretty interface{}
	if err := json.Unmarshal(resp.Result, &pretty); err != nil {
		fmt.Printf("%s: %s\n", label, resp.Result)
		return
	}
	out, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("%s:\n%s\n", label, out)
}

// main starts the server over stdio, lists its tools and optionally calls
// one: client -tool execute_sql -args call.json
func main() {
	toolName := flag.String("tool", "", "Tool to call after listing")
	argsFile := flag.String("args", "", "JSON file with the tool arguments")
	flag.Parse()

	serverPath := os.Getenv("SERVER_PATH")
	if serverPath == "" {
		serverPath = "./nl2sql-mcp-server"
	}
	if _, err := os.Stat(serverPath); os.IsNotExist(err) {
		fmt.Printf("Server binary not found at %s\n", serverPath)
		os.Exit(1)
	}

	var toolArgs map[string]interface{}
	if *toolName != "" && *argsFile != "" {
		raw, err := os.ReadFile(*argsFile)
		if err != nil {
			fmt.Printf("Error reading %s: %v\n", *argsFile, err)
			os.Exit(1)
		}
		if err := json.Unmarshal(raw, &toolArgs); err != nil {
			fmt.Printf("Error parsing %s: %v\n", *argsFile, err)
			os.Exit(1)
		}
	}

	cmd := exec.Command(serverPath, "-t", "stdio")
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		fmt.Printf("Error creating stdin pipe: %v\n", err)
		os.Exit(1)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Printf("Error creating stdout pipe: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Start(); err != nil {
		fmt.Printf("Error starting server: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cmd.Process.Kill() }()

	s := &session{stdin: stdin, stdout: bufio.NewReader(stdout)}

	resp, err := s.send("initialize", map[string]interface{}{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]string{"name": "nl2sql-smoke-client", "version": "1.0.0"},
		"capabilities":    map[string]interface{}{},
	}, false)
	if err != nil {
		fmt.Println(err)
		return
	}
	printResult("initialize", resp)
	if _, err := s.send("notifications/initialized", nil, true); err != nil {
		fmt.Println(err)
		return
	}

	resp, err = s.send("tools/list", map[string]interface{}{}, false)
	if err != nil {
		fmt.Println(err)
		return
	}
	printResult("tools/list", resp)

	if *toolName == "" {
		return
	}
	resp, err = s.send("tools/call", map[string]interface{}{
		"name":      *toolName,
		"arguments": toolArgs,
	}, false)
	if err != nil {
		fmt.Println(err)
		return
	}
	printResult(*toolName, resp)
}
