package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"PQ-Bitcoin/sdk/go/pqclaim"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "pqclaimd base url")
	flag.Parse()

	client, err := pqclaim.NewClient(*addr, nil)
	if err != nil {
		log.Fatal(err)
	}
	client.SetAccessToken(os.Getenv("PQCLAIM_TOKEN"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	programs, err := client.ListPrograms(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range programs {
		fmt.Printf("%-18s vkey=%s\n", p.Name, p.VKey)
	}

	var stdin pqclaim.Stdin
	stdin.WriteU32(7)
	stdin.WriteU32(3)
	stdin.WriteU32(8)
	job, err := client.SubmitProof(ctx, pqclaim.ProofRequest{Program: "polynomial", Mode: "prove", Stdin: stdin})
	if err != nil {
		log.Fatal(err)
	}

	done, err := client.WaitForProof(ctx, job.ID, time.Second)
	if err != nil {
		log.Fatal(err)
	}
	if done.Result == nil {
		log.Fatalf("job %s finished as %s: %s", done.ID, done.Status, done.LastError)
	}
	fmt.Printf("job %s %s: y=%v vkey=%s\n", done.ID, done.Status, done.Result.Decoded["y"], done.Result.VKey)
}
