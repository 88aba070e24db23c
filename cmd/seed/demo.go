package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/uuid"
)

// Demo is the seed file layout. Users are referenced by email everywhere else.
type Demo struct {
	Users    []DemoUser    `yaml:"users"`
	Projects []DemoProject `yaml:"projects"`
	Reports  []DemoReport  `yaml:"reports"`
	Devices  []DemoDevice  `yaml:"devices"`
}

type DemoUser struct {
	Email        string `yaml:"email"`
	Password     string `yaml:"password"`
	FullName     string `yaml:"full_name"`
	Organization string `yaml:"organization"`
}

type DemoProject struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Status      string   `yaml:"status"`
	Latitude    float64  `yaml:"latitude"`
	Longitude   float64  `yaml:"longitude"`
	Tags        []string `yaml:"tags"`
	Owner       string   `yaml:"owner"`
	Members     []string `yaml:"members"`
}

type DemoReport struct {
	Title       string  `yaml:"title"`
	Description string  `yaml:"description"`
	Category    string  `yaml:"category"`
	Severity    string  `yaml:"severity"`
	Status      string  `yaml:"status"`
	Latitude    float64 `yaml:"latitude"`
	Longitude   float64 `yaml:"longitude"`
	Reporter    string  `yaml:"reporter"`
}

type DemoDevice struct {
	Name      string  `yaml:"name"`
	Kind      string  `yaml:"kind"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
	Owner     string  `yaml:"owner"`

	// Key is the plaintext device key; only its hash is stored.
	Key string `yaml:"key"`
}

func loadDemo(path string) (*Demo, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d Demo
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &d, nil
}

var (
	reportCategories = map[string]bool{"water_quality": true, "waste": true, "deforestation": true, "wildlife": true, "other": true}
	reportSeverities = map[string]bool{"low": true, "medium": true, "high": true}
	reportStatuses   = map[string]bool{"open": true, "in_review": true, "resolved": true}
	projectStatuses  = map[string]bool{"planning": true, "active": true, "completed": true}
)

// validate collects every problem in the file instead of stopping at the first.
func (d *Demo) validate() error {
	var errs []error
	users := map[string]bool{}
	for i, u := range d.Users {
		email := normEmail(u.Email)
		switch {
		case email == "":
			errs = append(errs, fmt.Errorf("users[%d]: email is required", i))
		case users[email]:
			errs = append(errs, fmt.Errorf("users[%d]: duplicate email %s", i, email))
		}
		if len(u.Password) < 8 {
			errs = append(errs, fmt.Errorf("users[%d]: password must be at least 8 characters", i))
		}
		users[email] = true
	}
	known := func(where, email string) {
		if !users[normEmail(email)] {
			errs = append(errs, fmt.Errorf("%s: unknown user %q", where, email))
		}
	}
	point := func(where string, lat, lng float64) {
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			errs = append(errs, fmt.Errorf("%s: location out of range", where))
		}
	}

	slugs := map[string]bool{}
	for i, p := range d.Projects {
		where := fmt.Sprintf("projects[%d]", i)
		if p.Slug == "" || p.Title == "" {
			errs = append(errs, fmt.Errorf("%s: slug and title are required", where))
		}
		if slugs[p.Slug] {
			errs = append(errs, fmt.Errorf("%s: duplicate slug %s", where, p.Slug))
		}
		slugs[p.Slug] = true
		if !projectStatuses[p.Status] {
			errs = append(errs, fmt.Errorf("%s: bad status %q", where, p.Status))
		}
		point(where, p.Latitude, p.Longitude)
		known(where+".owner", p.Owner)
		for _, m := range p.Members {
			known(where+".members", m)
		}
	}
	for i, r := range d.Reports {
		where := fmt.Sprintf("reports[%d]", i)
		if r.Title == "" {
			errs = append(errs, fmt.Errorf("%s: title is required", where))
		}
		if !reportCategories[r.Category] || !reportSeverities[r.Severity] || !reportStatuses[r.Status] {
			errs = append(errs, fmt.Errorf("%s: bad category, severity or status", where))
		}
		point(where, r.Latitude, r.Longitude)
		known(where+".reporter", r.Reporter)
	}
	for i, dv := range d.Devices {
		where := fmt.Sprintf("devices[%d]", i)
		if dv.Name == "" || dv.Kind == "" {
			errs = append(errs, fmt.Errorf("%s: name and kind are required", where))
		}
		if len(dv.Key) < 16 {
			errs = append(errs, fmt.Errorf("%s: key must be at least 16 characters", where))
		}
		point(where, dv.Latitude, dv.Longitude)
		known(where+".owner", dv.Owner)
	}
	return errors.Join(errs...)
}

// Seeded rows get name-based ids so reruns update in place.
func seedID(ns uuid.UUID, kind, name string) string {
	canon := strings.ToLower(strings.Join(strings.Fields(name), " "))
	return uuid.NewSHA1(ns, []byte(kind+":"+canon)).String()
}
