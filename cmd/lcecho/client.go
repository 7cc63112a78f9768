// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"bufio"
	"bytes"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ysyzqq/lcepoll/internal/echo"
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send messages to an echo server and check the replies",
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
	RunE: runClient,
}

func init() {
	flags := clientCmd.Flags()
	flags.String("addr", "127.0.0.1:8888", "server address")
	flags.Int("count", 10, "number of messages to send")
	flags.Int("size", 64, "payload size of each message")
	flags.Duration("timeout", 5*time.Second, "dial and io timeout")
}

func runClient(cmd *cobra.Command, _ []string) error {
	timeout := viper.GetDuration("timeout")
	conn, err := net.DialTimeout("tcp", viper.GetString("addr"), timeout)
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer conn.Close()

	var exchange func(payload []byte) ([]byte, error)
	switch proto := viper.GetString("protocol"); proto {
	case "frame":
		fc := echo.NewFrameConn(conn)
		exchange = func(payload []byte) ([]byte, error) {
			if err := fc.WriteFrame(payload); err != nil {
				return nil, err
			}
			return fc.ReadFrame()
		}
	case "line":
		r := bufio.NewReader(conn)
		exchange = func(payload []byte) ([]byte, error) {
			if _, err := conn.Write(append(payload, '\n')); err != nil {
				return nil, err
			}
			line, err := r.ReadBytes('\n')
			return bytes.TrimSuffix(line, []byte{'\n'}), err
		}
	default:
		return errors.Wrapf(echo.ErrUnknownProtocol, "%q", proto)
	}

	const alphabet = "abcdefghijklmnoprstuvwxyz0123456789"
	payload := make([]byte, viper.GetInt("size"))
	var total time.Duration
	count := viper.GetInt("count")
	for i := 0; i < count; i++ {
		for j := range payload {
			payload[j] = alphabet[rand.Intn(len(alphabet))]
		}
		_ = conn.SetDeadline(time.Now().Add(timeout))
		start := time.Now()
		reply, err := exchange(payload)
		if err != nil {
			return errors.Wrapf(err, "message %d", i)
		}
		if !bytes.Equal(reply, payload) {
			return errors.Errorf("message %d: reply mismatch", i)
		}
		total += time.Since(start)
	}
	if count > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%d messages of %d bytes, avg rtt %v\n", count, len(payload), total/time.Duration(count))
	}
	return nil
}
