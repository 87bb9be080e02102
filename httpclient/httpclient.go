package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

var (
	ErrStatusCodeMismatch  = errors.New("status code mismatch")
	ErrContentTypeMismatch = errors.New("content type mismatch")
	ErrRequestFailed       = errors.New("request failed")
)

// client does not retry on its own, retry policy belongs to the callers.
var client = &fasthttp.Client{
	MaxIdemponentCallAttempts: 1,
	RetryIf:                   func(*fasthttp.Request) bool { return false },
}

// PostJSON posts the serialized 'out' structure to the given 'url' and returns the response status code and body.
// Transport failures are returned wrapped in ErrRequestFailed, the status code is not interpreted.
func PostJSON(timeout time.Duration, url string, out any) (int, []byte, error) {
	raw, err := json.Marshal(out)
	if err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("accept", "application/json")
	req.SetBody(raw)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return 0, nil, errors.Join(ErrRequestFailed, err)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	return resp.StatusCode(), body, nil
}

// MakePost make a post request with serialized 'out' structure which is send to the given 'url'.
// 'in' is a pointer to the structure to be deserialized from the received json data, it may be nil.
func MakePost(timeout time.Duration, url string, out, in any) error {
	status, body, err := PostJSON(timeout, url, out)
	if err != nil {
		return err
	}

	return decode(status, body, in)
}

// MakeGet make a get request to the given 'url'.
// 'in' is a pointer to the structure to be deserialized from the received json data, it may be nil.
func MakeGet(timeout time.Duration, url string, in any) error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if err := client.DoTimeout(req, resp, timeout); err != nil {
		return errors.Join(ErrRequestFailed, err)
	}

	if in != nil && !bytes.HasPrefix(resp.Header.ContentType(), []byte("application/json")) {
		return errors.Join(
			ErrContentTypeMismatch,
			fmt.Errorf("expected content type application/json but got %s", resp.Header.ContentType()))
	}

	return decode(resp.StatusCode(), resp.Body(), in)
}

// IsSuccess reports whether the status code belongs to the 2xx class.
func IsSuccess(status int) bool {
	return status >= fasthttp.StatusOK && status < fasthttp.StatusMultipleChoices
}

func decode(status int, body []byte, in any) error {
	switch {
	case status == fasthttp.StatusNoContent:
		return nil
	case !IsSuccess(status):
		return errors.Join(
			ErrStatusCodeMismatch,
			fmt.Errorf("expected status code %d but got %d", fasthttp.StatusOK, status))
	}

	if in == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, in)
}
