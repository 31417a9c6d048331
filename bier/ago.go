package bier

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	// Token lifetime requested from the portal, in minutes.
	TOKEN_EXPIRATION = "9999"

	tokenInvalidCode = 498
	tokenExpiredCode = 499
)

// Credentials hold everything needed to open (and re-open) a portal session.
type Credentials struct {
	PortalURL string
	Username  string
	Password  string
}

// AGO is an authenticated session against an ArcGIS Online portal. It keeps
// the credentials so the session can be re-established after a token
// rejection without caller involvement.
type AGO struct {
	creds      Credentials
	httpClient *resty.Client
	token      string
	expiresAt  time.Time
}

// ItemInfo is the portal metadata for a hosted item.
type ItemInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Owner string `json:"owner"`
	URL   string `json:"url"`
}

// Interface for portal item content operations, implemented by AGO. Used by
// scripts that rewrite dashboard definitions.
type ItemContent interface {
	ItemInfo(itemID string) (ItemInfo, error)
	ItemData(itemID string) (map[string]interface{}, error)
	UpdateItemData(info ItemInfo, data map[string]interface{}) error
}

// Connect opens a session by generating a portal token. Scripts call this
// once at startup and treat failure as fatal.
func Connect(creds Credentials) (*AGO, error) {
	if creds.PortalURL == "" || creds.Username == "" || creds.Password == "" {
		return nil, fmt.Errorf("ago credentials: %w", ErrMissingConfig)
	}

	ago := &AGO{
		creds:      creds,
		httpClient: resty.New().SetTimeout(REQUEST_TIMEOUT),
	}

	if err := ago.generateToken(); err != nil {
		logrus.Error("Connection to AGO failed: " + err.Error())
		return nil, err
	}

	logrus.Info("Connected to AGO successfully")
	return ago, nil
}

// Reconnect re-runs the token exchange with the stored credentials. A failed
// reconnect is logged and returned; the next operation attempt surfaces the
// real error.
func (a *AGO) Reconnect() error {
	logrus.Info("Reconnecting to AGO")
	if err := a.generateToken(); err != nil {
		logrus.Warn("Reconnection to AGO failed: " + err.Error())
		return err
	}
	return nil
}

// Disconnect drops the session. Portal tokens cannot be revoked through the
// sharing API, so forgetting the cached token is the entire logout. Never
// fails the caller.
func (a *AGO) Disconnect() {
	a.token = ""
	a.expiresAt = time.Time{}
	logrus.Info("Disconnected from AGO")
}

func (a *AGO) Token() string { return a.token }

func (a *AGO) PortalURL() string { return a.creds.PortalURL }

func (a *AGO) generateToken() error {
	tokenURL := a.restURL("generateToken")

	resp, err := a.httpClient.R().
		SetFormData(map[string]string{
			"username":   a.creds.Username,
			"password":   a.creds.Password,
			"referer":    a.creds.PortalURL,
			"expiration": TOKEN_EXPIRATION,
			"f":          "json",
		}).
		Post(tokenURL)

	if err != nil {
		return fmt.Errorf("requesting token on url %s: %w", tokenURL, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode(), URL: tokenURL}
	}

	var result struct {
		Token   string    `json:"token"`
		Expires int64     `json:"expires"`
		Error   *AGOError `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return &DecodeError{URL: tokenURL, Err: err}
	}

	if result.Error != nil {
		return &AuthError{Code: result.Error.Code, Message: result.Error.Message}
	}
	if result.Token == "" {
		return &AuthError{Message: "portal returned no token"}
	}

	a.token = result.Token
	a.expiresAt = time.UnixMilli(result.Expires)
	return nil
}

// PostForm sends an authenticated request to an AGO REST endpoint and
// unmarshals the response into v. The portal reports failures inside 200
// responses; those are unwrapped here, with token rejections mapped to
// AuthError so callers can reconnect.
func (a *AGO) PostForm(endpoint string, form map[string]string, v interface{}) error {
	if form == nil {
		form = make(map[string]string)
	}
	form["f"] = "json"
	form["token"] = a.token

	logrus.Debug("Sending POST request on url: " + endpoint)

	resp, err := a.httpClient.R().SetFormData(form).Post(endpoint)
	if err != nil {
		return fmt.Errorf("sending POST request on url %s: %w", endpoint, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusBadRequest {
		return &StatusError{StatusCode: resp.StatusCode(), URL: endpoint}
	}

	var envelope struct {
		Error *AGOError `json:"error"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return &DecodeError{URL: endpoint, Err: err}
	}
	if envelope.Error != nil {
		if envelope.Error.Code == tokenInvalidCode || envelope.Error.Code == tokenExpiredCode {
			return &AuthError{Code: envelope.Error.Code, Message: envelope.Error.Message}
		}
		return envelope.Error
	}

	if v == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return &DecodeError{URL: endpoint, Err: err}
	}
	return nil
}

// ItemInfo fetches the portal metadata for an item, including the hosted
// service URL that feature layer operations are built on.
func (a *AGO) ItemInfo(itemID string) (ItemInfo, error) {
	var info ItemInfo
	if err := a.PostForm(a.restURL("content/items/"+itemID), nil, &info); err != nil {
		return ItemInfo{}, fmt.Errorf("fetching item %s: %w", itemID, err)
	}
	if info.ID == "" {
		info.ID = itemID
	}
	return info, nil
}

// ItemData returns the JSON document stored behind an item, such as a
// dashboard definition.
func (a *AGO) ItemData(itemID string) (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := a.PostForm(a.restURL("content/items/"+itemID+"/data"), nil, &data); err != nil {
		return nil, fmt.Errorf("fetching item data %s: %w", itemID, err)
	}
	return data, nil
}

// UpdateItemData replaces the JSON document behind an item. The portal routes
// updates through the owning user's content endpoint.
func (a *AGO) UpdateItemData(info ItemInfo, data map[string]interface{}) error {
	text, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding item data %s: %w", info.ID, err)
	}

	endpoint := a.restURL("content/users/" + info.Owner + "/items/" + info.ID + "/update")

	var result struct {
		Success bool `json:"success"`
	}
	if err := a.PostForm(endpoint, map[string]string{"text": string(text)}, &result); err != nil {
		return fmt.Errorf("updating item data %s: %w", info.ID, err)
	}
	if !result.Success {
		return fmt.Errorf("updating item data %s: portal reported failure", info.ID)
	}
	return nil
}

func (a *AGO) restURL(path string) string {
	return strings.TrimRight(a.creds.PortalURL, "/") + "/sharing/rest/" + path
}
