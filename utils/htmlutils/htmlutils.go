// Copyright 2026 The Geocoder Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlutils provides utility functions for working with HTML.
package htmlutils

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// ErrConsentRequired is returned when Google answers with its cookie consent
// interstitial instead of the requested page.
var ErrConsentRequired = errors.New("consent page returned")

// consentTitles are the title prefixes of the consent interstitial.
var consentTitles = []string{
	"before you continue",
	"antes de continuar",
	"avant d'accéder",
	"bevor sie zu google",
}

// Text returns the whitespace-normalized text content of n.
func Text(n *html.Node) string {
	sb := strings.Builder{}

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if tmp := strings.TrimSpace(n.Data); tmp != "" {
				if sb.Len() != 0 {
					sb.WriteByte(' ')
				}

				sb.WriteString(tmp)
			}

			return
		}

		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)

	return strings.Join(strings.Fields(sb.String()), " ")
}

// Validates that response seems to be an HTML response.
func hasHTMLContentType(media string) bool {
	const expectedMedia = "text/html"

	return strings.EqualFold(
		expectedMedia,
		media[0:min(len(media), len(expectedMedia))],
	)
}

// AsReader converts an HTTP response body to an io.Reader with the correct charset.
func AsReader(resp *http.Response) (io.Reader, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("status %d", resp.StatusCode)
	}

	media := resp.Header.Get("Content-Type")
	if !hasHTMLContentType(media) {
		return nil, eris.Errorf("media type is %s", media)
	}

	rr, err := charset.NewReader(resp.Body, media)
	if err != nil {
		return nil, eris.Wrap(err, "detecting charset")
	}

	return rr, nil
}

// AsNode parses an io.Reader as an HTML node.
func AsNode(r io.Reader) (*html.Node, error) {
	n, err := html.Parse(r)
	if nil != err {
		return nil, eris.Wrap(err, "parsing body as HTML")
	}

	if err := failIfConsent(n); err != nil {
		return nil, err
	}

	return n, nil
}

func failIfConsent(n *html.Node) (err error) {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && strings.EqualFold("title", child.Data) {
			title := strings.ToLower(Text(child))
			for _, prefix := range consentTitles {
				if strings.HasPrefix(title, prefix) {
					return ErrConsentRequired
				}
			}
		} else if child.Type == html.ElementNode && strings.EqualFold("body", child.Data) {
			// we're done
			break
		} else {
			err = failIfConsent(child)
			if err != nil {
				break
			}
		}
	}

	return err
}

// Attr returns the value of the named attribute of n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}

	return "", false
}

// MetaContent returns the content attribute of the first <meta> whose attr
// (e.g. "property" or "itemprop") equals value.
func MetaContent(n *html.Node, attr, value string) (string, bool) {
	if n.Type == html.ElementNode && strings.EqualFold("meta", n.Data) {
		if v, ok := Attr(n, attr); ok && strings.EqualFold(v, value) {
			return Attr(n, "content")
		}
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if content, ok := MetaContent(child, attr, value); ok {
			return content, true
		}
	}

	return "", false
}
