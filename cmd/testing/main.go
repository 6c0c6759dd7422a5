// Command testing replays signed webhooks against a running instance. It opens deposits for a
// user, then fires every completion webhook several times from concurrent workers and prints the
// balance, which must reflect each deposit exactly once.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"github.com/google/uuid"
	"github.com/mufasadev/coin-settlement/internal/domain/models"
	"github.com/mufasadev/coin-settlement/internal/gateways"
	"golang.org/x/sync/errgroup"
	"io"
	"net/http"
	"os"
	"time"
)

var URL, _ = os.LookupEnv("API_URL")
var PORT, _ = os.LookupEnv("API_PORT")

var client = &http.Client{Timeout: 15 * time.Second}

type deposit struct {
	TransactionID     string `json:"transactionId"`
	ProviderReference string `json:"providerReference"`
}

func main() {
	deposits := flag.Int("deposits", 5, "deposits to open")
	copies := flag.Int("copies", 5, "deliveries of each webhook")
	workers := flag.Int("workers", 10, "concurrent senders")
	amount := flag.String("amount", "20", "amount of each deposit in USD")
	secret := flag.String("secret", os.Getenv("CASHBOX_CALLBACK_TOKEN"), "cashbox callback token")
	flag.Parse()

	if URL == "" {
		URL = "localhost"
	}
	if PORT == "" {
		PORT = "8080"
	}
	apiURL := fmt.Sprintf("http://%s:%s/api/v1", URL, PORT)
	userID := uuid.NewString()

	opened := make([]deposit, 0, *deposits)
	for i := 0; i < *deposits; i++ {
		d, err := openDeposit(apiURL, userID, *amount)
		if err != nil {
			fmt.Println("Error opening deposit:", err)
			os.Exit(1)
		}
		opened = append(opened, d)
	}
	fmt.Printf("Opened %d deposits for user %s\n", len(opened), userID)

	var g errgroup.Group
	g.SetLimit(*workers)
	for _, d := range opened {
		for c := 0; c < *copies; c++ {
			d := d
			g.Go(func() error {
				return sendWebhook(apiURL, d, *secret)
			})
		}
	}
	if err := g.Wait(); err != nil {
		fmt.Println("Error sending webhook:", err)
	}

	printBalance(apiURL, userID)
}

func openDeposit(apiURL, userID, amount string) (deposit, error) {
	body, _ := json.Marshal(map[string]string{"amount": amount, "currency": "USD", "provider": string(models.ProviderCashBox)})
	resp, err := client.Post(apiURL+"/users/"+userID+"/deposits", "application/json", bytes.NewReader(body))
	if err != nil {
		return deposit{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return deposit{}, fmt.Errorf("wrong status code: %d: %s", resp.StatusCode, data)
	}
	var d deposit
	if err = json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return deposit{}, err
	}
	return d, nil
}

func sendWebhook(apiURL string, d deposit, secret string) error {
	payload, _ := json.Marshal(map[string]string{
		"transid":  d.ProviderReference,
		"status":   "paid",
		"amount":   "0",
		"currency": "USD",
	})
	signature, err := gateways.SignWebhook(models.ProviderCashBox, secret, payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, apiURL+"/webhooks/"+string(models.ProviderCashBox), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(gateways.CashBoxTokenHeader, signature)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	fmt.Printf("Webhook sent. Status code: %d, Message: %s\n", resp.StatusCode, bytes.TrimSpace(data))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wrong status code: %d", resp.StatusCode)
	}
	return nil
}

func printBalance(apiURL, userID string) {
	resp, err := client.Get(apiURL + "/users/" + userID + "/balance")
	if err != nil {
		fmt.Println("Error getting balance:", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Println("Wrong status code:", resp.StatusCode)
		return
	}

	var balance struct {
		Balance int64  `json:"balance"`
		VIPTier string `json:"vipTier"`
	}
	if err = json.NewDecoder(resp.Body).Decode(&balance); err != nil {
		fmt.Println("Error decoding balance:", err)
		return
	}
	fmt.Printf("User balance: %d coins (%s)\n", balance.Balance, balance.VIPTier)
}
