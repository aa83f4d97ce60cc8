package docker

import "testing"

func TestBuildMessageRender(t *testing.T) {
	cases := []struct {
		msg  buildMessage
		want string
	}{
		{buildMessage{Stream: "Step 1/4 : FROM node:20\n"}, "Step 1/4 : FROM node:20"},
		{buildMessage{Status: "Downloading", ID: "abc123", Progress: "[==> ] 10MB/50MB"}, "abc123 Downloading [==> ] 10MB/50MB"},
		{buildMessage{Status: "Pull complete"}, "Pull complete"},
		{buildMessage{}, ""},
	}
	for _, tc := range cases {
		if got := tc.msg.render(); got != tc.want {
			t.Errorf("render(%+v) = %q, want %q", tc.msg, got, tc.want)
		}
	}
}

func TestBuildMessageErrorMessage(t *testing.T) {
	msg := buildMessage{Error: "The command '/bin/sh -c npm ci' returned a non-zero code: 1\n"}
	if got := msg.errorMessage(); got != "The command '/bin/sh -c npm ci' returned a non-zero code: 1" {
		t.Errorf("errorMessage = %q", got)
	}

	detail := buildMessage{ErrorDetail: buildErrorDetail{Message: "no such file"}}
	if got := detail.errorMessage(); got != "no such file" {
		t.Errorf("errorMessage from detail = %q", got)
	}

	if (buildMessage{Stream: "ok"}).errorMessage() != "" {
		t.Error("clean message reported an error")
	}
}
