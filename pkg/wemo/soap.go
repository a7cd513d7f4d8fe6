package wemo

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/urmzd/homai-hub/pkg/device"
)

const envelope = `<?xml version="1.0" encoding="utf-8"?>` +
	`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/" s:encodingStyle="http://schemas.xmlsoap.org/soap/encoding/">` +
	`<s:Body><u:%[1]s xmlns:u="` + BasicEventService + `">%[2]s</u:%[1]s></s:Body></s:Envelope>`

// errStateUnchanged is returned when the device answers SetBinaryState with
// "Error", which WeMo firmware does when the relay is already in that state.
var errStateUnchanged = errors.New("binary state unchanged")

// soapCall posts a basicevent action and returns the BinaryState in the reply.
func soapCall(ctx context.Context, client *http.Client, controlURL, action, args string) (int, error) {
	body := fmt.Sprintf(envelope, action, args)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, strings.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	req.Header.Set("SOAPACTION", fmt.Sprintf(`"%s#%s"`, BasicEventService, action))

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", device.ErrTransport, action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w: read %s reply: %w", device.ErrTransport, action, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s: status %d", device.ErrTransport, action, resp.StatusCode)
	}

	return parseBinaryState(raw)
}

// parseBinaryState extracts the BinaryState element from a SOAP reply.
// Insight plugs report "state|since|...", only the first field is used.
func parseBinaryState(raw []byte) (int, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("%w: soap reply: %w", device.ErrProtocolParse, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "BinaryState" {
			continue
		}

		var v string
		if err := dec.DecodeElement(&v, &start); err != nil {
			return 0, fmt.Errorf("%w: BinaryState: %w", device.ErrProtocolParse, err)
		}
		v = strings.TrimSpace(v)
		if v == "Error" {
			return 0, errStateUnchanged
		}
		if i := strings.IndexByte(v, '|'); i >= 0 {
			v = v[:i]
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%w: BinaryState %q", device.ErrProtocolParse, v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%w: no BinaryState in reply", device.ErrProtocolParse)
}
