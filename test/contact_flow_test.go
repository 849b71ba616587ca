//go:build integration_test || all_tests

package test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
)

func (s *IntegrationTestSuite) do(client *http.Client, method, path string, form url.Values) (*http.Response, string) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(context.Background(), method, serverEndpoint+path, body)
	s.Require().NoError(err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp, string(respBytes)
}

func (s *IntegrationTestSuite) login(client *http.Client) {
	form := url.Values{}
	form.Set("username", testUsername)
	form.Set("password", testPassword)
	resp, _ := s.do(client, "POST", "/loginUser", form)
	s.Require().Equal(http.StatusFound, resp.StatusCode)
	s.Require().Equal("/admina.html", resp.Header.Get("Location"))
}

func (s *IntegrationTestSuite) submissionID(email string) int {
	var id int
	err := s.DB.QueryRow(`SELECT id FROM submission WHERE email = $1;`, email).Scan(&id)
	s.Require().NoError(err)
	return id
}

func (s *IntegrationTestSuite) TestContactFlow() {
	client := s.newClient()
	email := fmt.Sprintf("ada.%d@example.com", gofakeit.Number(1, 1_000_000))

	form := url.Values{}
	form.Set("name", "Ada")
	form.Set("email", email)
	form.Set("address", gofakeit.Street())
	form.Set("phone", "5551234")
	form.Set("message", gofakeit.Sentence(10))
	resp, _ := s.do(client, "POST", "/submit-form", form)
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/?success=true", resp.Header.Get("Location"))

	// not logged in yet
	resp, _ = s.do(client, "GET", "/admina.html", nil)
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	s.login(client)

	resp, body := s.do(client, "GET", "/admina.html", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, email)

	id := s.submissionID(email)
	resp, body = s.do(client, "GET", fmt.Sprintf("/records/%d", id), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(body, `"email":"`+email+`"`)

	resp, body = s.do(client, "DELETE", fmt.Sprintf("/records/%d", id), nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(fmt.Sprintf("deleted:%d", id), body)

	resp, body = s.do(client, "GET", "/admina.html", nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.NotContains(body, email)

	resp, _ = s.do(client, "GET", fmt.Sprintf("/records/%d", id), nil)
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(client, "POST", "/logout", nil)
	s.Equal(http.StatusFound, resp.StatusCode)
	s.Equal("/login", resp.Header.Get("Location"))

	resp, _ = s.do(client, "GET", "/admina.html", nil)
	s.Equal(http.StatusFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestSubmitInvalid() {
	client := s.newClient()

	form := url.Values{}
	form.Set("name", "Ada")
	form.Set("email", "no-at-sign")
	form.Set("address", gofakeit.Street())
	form.Set("phone", "call me")
	form.Set("message", "Hello")
	resp, body := s.do(client, "POST", "/submit-form", form)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("invalid fields: email, phone\n", body)

	var count int
	s.Require().NoError(s.DB.QueryRow(`SELECT COUNT(*) FROM submission WHERE email = 'no-at-sign';`).Scan(&count))
	s.Equal(0, count)
}

func (s *IntegrationTestSuite) TestLoginBadCredentials() {
	client := s.newClient()

	for _, creds := range [][2]string{
		{testUsername, "bad-password"},
		{"bad-username", testPassword},
	} {
		form := url.Values{}
		form.Set("username", creds[0])
		form.Set("password", creds[1])
		resp, body := s.do(client, "POST", "/loginUser", form)
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
		s.Equal("invalid username or password\n", body)
	}

	resp, _ := s.do(client, "GET", "/admina.html", nil)
	s.Equal(http.StatusFound, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestDeleteWithoutSession() {
	client := s.newClient()

	resp, _ := s.do(client, "DELETE", "/records/1", nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *IntegrationTestSuite) TestSessionStoredInRedis() {
	ctx := context.Background()
	before, err := s.Redis.Keys(ctx, "portfolio-session||*").Result()
	s.Require().NoError(err)

	client := s.newClient()
	s.login(client)

	after, err := s.Redis.Keys(ctx, "portfolio-session||*").Result()
	s.Require().NoError(err)
	s.Len(after, len(before)+1)

	resp, _ := s.do(client, "POST", "/logout", nil)
	s.Equal(http.StatusFound, resp.StatusCode)

	afterLogout, err := s.Redis.Keys(ctx, "portfolio-session||*").Result()
	s.Require().NoError(err)
	s.Len(afterLogout, len(before))
}
