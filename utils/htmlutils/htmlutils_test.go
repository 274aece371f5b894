// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

package htmlutils

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

func asHTMLNode(resp *http.Response) (*html.Node, error) {
	r, err := AsReader(resp)
	if err != nil {
		return nil, err
	}

	return AsNode(r)
}

func TestText(t *testing.T) {
	tests := []struct {
		expected string
		input    string
	}{
		{"foo bar", "<div><pre>foo</pre><span>bar</span>"},
		{"Rua Augusta, 1500", "<p>  Rua   Augusta,\n 1500 </p>"},
		{"", "<div></div>"},
	}

	for _, test := range tests {
		n, err := html.Parse(strings.NewReader(test.input))
		if err != nil {
			t.Fatalf("parsing HTML `%s': %s", test.input, err)
		}

		if got := Text(n); got != test.expected {
			t.Errorf("`%s': expected `%v' but got `%v'", test.input, test.expected, got)
		}
	}
}

func TestAsHTMLReader_WithNonOKStatus(t *testing.T) {
	const msg = "status 404"

	resp := &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("")),
	}

	r, err := asHTMLNode(resp)
	if r != nil {
		t.Errorf("Expected nil reader")
	} else if err == nil || !strings.Contains(err.Error(), msg) {
		t.Errorf("Expected error containing '%s', got %v", msg, err)
	}
}

func TestAsHTMLReader_WithWrongMediaType(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("plain text")),
	}
	resp.Header.Set("Content-Type", "text/plain")

	r, err := asHTMLNode(resp)
	if r != nil {
		t.Errorf("Expected nil reader")
	} else if err == nil || !strings.Contains(err.Error(), "text/plain") {
		t.Errorf("Expected error mentioning media type, got %v", err)
	}
}

func TestAsHTMLReader_HappyPathTranscoding(t *testing.T) {
	htmlData := "<html>S\xe3o Paulo</html>"
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(htmlData)),
	}
	resp.Header.Set("Content-Type", "text/html; charset=iso-8859-1")

	n, err := asHTMLNode(resp)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := Text(n); got != "São Paulo" {
		t.Errorf("Expected transcoded content, got %q", got)
	}
}

func TestHasHtmlContentType(t *testing.T) {
	tests := []struct {
		expected bool
		input    string
	}{
		{false, ""},
		{false, "text/plain"},
		{true, "text/html"},
		{true, "text/HTml"},
		{true, "text/html; charset=UTF-8"},
	}

	for _, test := range tests {
		if got := hasHTMLContentType(test.input); got != test.expected {
			t.Errorf("`%s': expected %v but got %v", test.input, test.expected, got)
		}
	}
}

func TestFailIfConsent_Fails(t *testing.T) {
	htmlData := `<!DOCTYPE html>
<html lang="pt-BR">
  <head>
    <title>Antes de continuar para o Google Maps</title>
  </head>
</html>`

	_, err := AsNode(strings.NewReader(htmlData))
	if err == nil {
		t.Fatal("was expecting an error")
	} else if !errors.Is(err, ErrConsentRequired) {
		t.Errorf("expect %s got %s", ErrConsentRequired, err)
	}
}

func TestFailIfConsent_Nil(t *testing.T) {
	htmlData := `<!DOCTYPE html>
<html lang="pt-BR">
  <head>
    <title>Rua Augusta - Google Maps</title>
  </head>
</html>`

	n, err := html.Parse(strings.NewReader(htmlData))
	if nil != err {
		t.Error(err)
	}

	if err = failIfConsent(n); err != nil {
		t.Fatal("wasn't  expecting an error")
	}
}

func TestMetaContent(t *testing.T) {
	htmlData := `<html><head>
<meta content="Google Maps" itemprop="name">
<meta content="https://maps.google.com/maps/api/staticmap?center=-23.55%2C-46.63&amp;zoom=15" property="og:image">
</head><body></body></html>`

	n, err := html.Parse(strings.NewReader(htmlData))
	if err != nil {
		t.Fatal(err)
	}

	got, ok := MetaContent(n, "property", "og:image")
	if !ok {
		t.Fatal("og:image not found")
	}

	if want := "https://maps.google.com/maps/api/staticmap?center=-23.55%2C-46.63&zoom=15"; got != want {
		t.Errorf("expected %q got %q", want, got)
	}

	if _, ok := MetaContent(n, "itemprop", "image"); ok {
		t.Error("itemprop=image should not be found")
	}
}
