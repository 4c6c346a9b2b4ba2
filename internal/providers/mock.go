package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing. Responses can be scripted per call
// with Enqueue; otherwise ResponseJSON/ResponseText is returned every time.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Rate limiting
	RPS        float64
	Retries    int
	RetryDelay time.Duration

	mu       sync.Mutex
	queue    []mockResponse
	requests []*ChatRequest
	count    int
}

type mockResponse struct {
	json json.RawMessage
	text string
	err  error
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
		RPS:          60,
		Retries:      3,
		RetryDelay:   time.Second,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestsPerSecond returns the RPS limit for rate limiting.
func (c *MockClient) RequestsPerSecond() float64 {
	return c.RPS
}

// MaxRetries returns the maximum retry attempts.
func (c *MockClient) MaxRetries() int {
	return c.Retries
}

// RetryDelayBase returns the base delay between retries.
func (c *MockClient) RetryDelayBase() time.Duration {
	return c.RetryDelay
}

// Enqueue scripts the next response. Calls consume queued responses in FIFO
// order before falling back to the static ResponseJSON/ResponseText.
func (c *MockClient) Enqueue(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(v)
	c.queue = append(c.queue, mockResponse{json: b, text: string(b)})
}

// EnqueueText scripts a plain-text response.
func (c *MockClient) EnqueueText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, mockResponse{text: text})
}

// EnqueueError scripts a call failure.
func (c *MockClient) EnqueueError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, mockResponse{err: err})
}

// Requests returns a copy of all requests seen so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// CallCount returns the number of Chat calls made.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	c.mu.Lock()
	c.count++
	count := c.count
	c.requests = append(c.requests, req)
	var scripted *mockResponse
	if len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		scripted = &next
	}
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if c.ShouldFail {
		result.ErrorType = "mock_failure"
		result.ErrorMessage = "mock client configured to fail"
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && count > c.FailAfter {
		result.ErrorType = "mock_failure"
		result.ErrorMessage = fmt.Sprintf("mock client failed after %d requests", c.FailAfter)
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = "context_cancelled"
			result.ErrorMessage = ctx.Err().Error()
			result.ExecutionTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	if scripted != nil {
		if scripted.err != nil {
			result.ErrorType = "mock_failure"
			result.ErrorMessage = scripted.err.Error()
			result.ExecutionTime = time.Since(start)
			return result, scripted.err
		}
		result.Success = true
		result.Content = scripted.text
		result.ParsedJSON = scripted.json
		result.ExecutionTime = time.Since(start)
		return result, nil
	}

	result.Success = true
	result.Content = c.ResponseText
	result.ParsedJSON = c.ResponseJSON
	result.ExecutionTime = time.Since(start)
	return result, nil
}

const MockOCRName = "mock-ocr"

// MockOCRProvider is an OCRProvider for testing.
type MockOCRProvider struct {
	Text       string
	Blocks     []OCRBlock
	ShouldFail bool

	mu    sync.Mutex
	count int
}

// Name returns the provider identifier.
func (p *MockOCRProvider) Name() string { return MockOCRName }

// RequestsPerSecond returns a permissive test limit.
func (p *MockOCRProvider) RequestsPerSecond() float64 { return 100 }

// MaxRetries returns the maximum retry attempts.
func (p *MockOCRProvider) MaxRetries() int { return 1 }

// RetryDelayBase returns the base delay between retries.
func (p *MockOCRProvider) RetryDelayBase() time.Duration { return time.Millisecond }

// CallCount returns the number of ProcessImage calls made.
func (p *MockOCRProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// ProcessImage returns the configured text.
func (p *MockOCRProvider) ProcessImage(ctx context.Context, image []byte, pageNum int) (*OCRResult, error) {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.ShouldFail {
		return &OCRResult{Success: false, ErrorMessage: "mock ocr configured to fail"},
			fmt.Errorf("mock ocr configured to fail")
	}
	return &OCRResult{Success: true, Text: p.Text, Blocks: p.Blocks}, nil
}
