// Package demotools holds the demo tool catalog used by the CLI, the server
// and the examples.
package demotools

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/agentlauncher/tool"
)

// Registrar is satisfied by tool.Runtime and the launcher façade.
type Registrar interface {
	Register(t tool.Tool) error
}

// Register adds every demo tool to r.
func Register(r Registrar) error {
	for _, t := range All() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// All returns the demo catalog in display order.
func All() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("calculate", "Calculate the result of the expression a * b + c.", calculate),
		tool.NewTypedTool("get_weather", "Get the current weather for a given location.", getWeather),
		tool.NewTypedTool("convert_temperature", "Convert temperature from Fahrenheit to Celsius.", convertTemperature),
		tool.NewFunctionTool("get_current_time", "Get the current date and time.", nil, getCurrentTime),
		tool.NewTypedTool("generate_random_number", "Generate a random integer between min and max.", generateRandomNumber),
		tool.NewTypedTool("search_web", "Search the web for a given query.", searchWeb),
		tool.NewTypedTool("get_stock_price", "Get the current stock price for a given ticker symbol.", getStockPrice),
		tool.NewTypedTool("text_analysis", "Analyze the text and provide word count.", textAnalysis),
		tool.NewTypedTool("find_dates", "Suggest three suitable dates in the given month (format: YYYY-MM).", findDates),
		tool.NewTypedTool("suggest_speakers", "Suggest two keynote speakers for a given topic.", suggestSpeakers),
		tool.NewTypedTool("draft_agenda", "Prepare a draft agenda with a given number of sessions.", draftAgenda),
		tool.NewFunctionTool("list_platforms", "List three online platforms suitable for hosting a conference.", nil, listPlatforms),
		tool.NewTypedTool("estimate_budget", "Estimate a budget for the event, including speaker fees, platform costs, and marketing.", estimateBudget),
		tool.NewTypedTool("draft_email", "Draft an invitation email for the event.", draftEmail),
	}
}

// Latency is slept by the tools that simulate a remote lookup.
var Latency = time.Second

// Now is the clock used by get_current_time.
var Now = time.Now

type calculateArgs struct {
	A int `json:"a" description:"The first integer."`
	B int `json:"b" description:"The second integer."`
	C int `json:"c" description:"The third integer."`
}

func calculate(_ context.Context, args calculateArgs) (string, error) {
	return strconv.Itoa(args.A*args.B + args.C), nil
}

type weatherArgs struct {
	Location string `json:"location" description:"The location to get the weather for."`
}

func getWeather(_ context.Context, args weatherArgs) (string, error) {
	return fmt.Sprintf("The weather in %s is sunny with a high of 75°F.", args.Location), nil
}

type temperatureArgs struct {
	Fahrenheit float64 `json:"fahrenheit" description:"Temperature in Fahrenheit."`
}

func convertTemperature(_ context.Context, args temperatureArgs) (string, error) {
	celsius := (args.Fahrenheit - 32) * 5.0 / 9.0
	return fmt.Sprintf("%s°F is %.2f°C.", formatNumber(args.Fahrenheit), celsius), nil
}

// formatNumber prints whole numbers with one decimal ("75.0").
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func getCurrentTime(context.Context, map[string]any) (string, error) {
	return Now().Format(time.DateTime), nil
}

type randomArgs struct {
	Min int `json:"min" description:"Minimum value."`
	Max int `json:"max" description:"Maximum value."`
}

func generateRandomNumber(_ context.Context, args randomArgs) (string, error) {
	if args.Min > args.Max {
		return "", fmt.Errorf("min (%d) must not exceed max (%d)", args.Min, args.Max)
	}
	return strconv.Itoa(args.Min + rand.IntN(args.Max-args.Min+1)), nil
}

type searchArgs struct {
	Query string `json:"query" description:"The search query."`
}

func searchWeb(ctx context.Context, args searchArgs) (string, error) {
	if err := sleep(ctx, Latency); err != nil {
		return "", err
	}
	return fmt.Sprintf("Search results for '%s': Example result 1, Example result 2.", args.Query), nil
}

type stockArgs struct {
	Ticker string `json:"ticker" description:"The stock ticker symbol."`
}

func getStockPrice(ctx context.Context, args stockArgs) (string, error) {
	if err := sleep(ctx, Latency); err != nil {
		return "", err
	}
	return fmt.Sprintf("The current price of %s is $150.00.", args.Ticker), nil
}

type textArgs struct {
	Text string `json:"text" description:"The text to analyze."`
}

func textAnalysis(_ context.Context, args textArgs) (string, error) {
	return fmt.Sprintf("The text contains %d words.", len(strings.Fields(args.Text))), nil
}

type monthArgs struct {
	Month string `json:"month" description:"Month in YYYY-MM format."`
}

func findDates(_ context.Context, args monthArgs) (string, error) {
	m := args.Month
	return fmt.Sprintf("Suggested dates: %s-10, %s-17, %s-24.", m, m, m), nil
}

type topicArgs struct {
	Topic string `json:"topic" description:"The topic for keynote speakers."`
}

func suggestSpeakers(_ context.Context, args topicArgs) (string, error) {
	return fmt.Sprintf("Keynote speakers in %s: Dr. Alice Smith, Prof. Bob Lee.", args.Topic), nil
}

type agendaArgs struct {
	Sessions int `json:"sessions" description:"Number of sessions."`
}

func draftAgenda(_ context.Context, args agendaArgs) (string, error) {
	lines := make([]string, 0, args.Sessions)
	for i := range args.Sessions {
		lines = append(lines, fmt.Sprintf("Session %d: Topic TBD", i+1))
	}
	return "Draft agenda:\n" + strings.Join(lines, "\n"), nil
}

func listPlatforms(context.Context, map[string]any) (string, error) {
	return "Online platforms: Zoom, Microsoft Teams, Hopin.", nil
}

type budgetArgs struct {
	Speakers  int    `json:"speakers" description:"Number of speakers."`
	Platform  string `json:"platform" description:"Platform name."`
	Marketing int    `json:"marketing" description:"Marketing budget in USD."`
}

func estimateBudget(_ context.Context, args budgetArgs) (string, error) {
	fees := args.Speakers * 1000
	total := fees + 500 + args.Marketing
	return fmt.Sprintf("Estimated budget: Speaker fees $%d, Platform (%s) $500, Marketing $%d, Total $%d.",
		fees, args.Platform, args.Marketing, total), nil
}

type emailArgs struct {
	EventName string `json:"event_name" description:"Name of the event."`
}

func draftEmail(_ context.Context, args emailArgs) (string, error) {
	return fmt.Sprintf("Subject: Invitation to %s\nDear Attendee,\nYou are invited to our virtual conference. "+
		"More details to follow.", args.EventName), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
