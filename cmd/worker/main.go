package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/CijeTheCreator/consultify-assemblyai/internal/config"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/consultation"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/db"
	"github.com/CijeTheCreator/consultify-assemblyai/internal/email"
)

type jobMsg struct {
	JobID string `json:"job_id"`
}

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	repo := consultation.NewRepo(gdb)
	sender := email.NewSender(email.Config{
		Host: cfg.SMTPHost,
		Port: strconv.Itoa(cfg.SMTPPort),
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	// Main queue dead-letters to the DLQ; topology matches the publisher.
	_, err = ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	})
	if err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m jobMsg
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, repo, sender, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleJob(ctx context.Context, repo *consultation.Repo, sender *email.Sender, jobID string) error {
	// A redelivery of a job that already sent, or that another worker is
	// mid-send on, fails the claim and is acked without a second email.
	claimed, err := repo.ClaimEmailJob(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Printf("skipping job %s: not claimable", jobID)
		return nil
	}

	j, err := repo.GetEmailJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	var meds []email.MedicationLine
	if err := json.Unmarshal(j.Medications, &meds); err != nil {
		_ = repo.MarkEmailJobFailed(ctx, jobID, "bad medications payload: "+err.Error())
		return err
	}

	subject := "Your prescription from Dr. " + j.DoctorName
	body := email.PrescriptionBody(j.PatientName, j.DoctorName, meds, j.CreatedAt)

	if err := sender.SendText(j.Recipient, subject, body); err != nil {
		_ = repo.MarkEmailJobFailed(ctx, jobID, err.Error())
		return err
	}

	if err := repo.MarkEmailJobSucceeded(ctx, jobID); err != nil {
		return err
	}

	log.Printf("prescription email sent job=%s to=%s", jobID, j.Recipient)
	return nil
}
