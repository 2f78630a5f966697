// Package httpclient is the HTTP client shared by the sidecar providers
// (whisper, pyannote, embedding, ollama). It handles base URLs, auth
// headers, JSON and multipart bodies, status classification and an optional
// circuit breaker, and converts failures into AppErrors with
// ToAppError.
//
//	client, err := httpclient.New(httpclient.Config{
//	    BaseURL: "http://localhost:9000",
//	    Timeout: 10 * time.Minute,
//	})
//	resp, err := client.Do(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/transcribe",
//	    Body:   &httpclient.MultipartBody{...},
//	})
package httpclient
