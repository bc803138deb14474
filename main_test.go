package main

import (
	"os"
	"os/signal"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureLogLevelFromEnv(t *testing.T) {
	prevLevel, prevLogger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prevLevel)
		log.Logger = prevLogger
	})

	tests := []struct {
		value string
		want  zerolog.Level
	}{
		{"", zerolog.Disabled},
		{"   ", zerolog.Disabled},
		{"0", zerolog.Disabled},
		{" 0\n", zerolog.Disabled},
		{"false", zerolog.Disabled},
		{"\tFalse ", zerolog.Disabled},
		{"1", zerolog.DebugLevel},
		{"true", zerolog.DebugLevel},
		{"00", zerolog.DebugLevel},
		{"no", zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DEBUG_GOTOK", tt.value)
			configureLogLevelFromEnv()
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestConfigureLogLevelFromEnv_UnsetDisables(t *testing.T) {
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(prevLevel) })

	t.Setenv("DEBUG_GOTOK", "1")
	require.NoError(t, os.Unsetenv("DEBUG_GOTOK"))
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	configureLogLevelFromEnv()
	assert.Equal(t, zerolog.Disabled, zerolog.GlobalLevel())
}

func TestSetupInterruptListener_ReceivesProcessSignal(t *testing.T) {
	stopChan := setupInterruptListener()
	t.Cleanup(func() { signal.Stop(stopChan) })

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(os.Interrupt))

	select {
	case sig := <-stopChan:
		assert.Equal(t, os.Interrupt, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("interrupt was not delivered to the listener")
	}
}

func TestHandleInterrupt_LogsAndExitsWithStatusOne(t *testing.T) {
	stopChan := make(chan os.Signal, 1)
	logged := make(chan string, 1)
	exited := make(chan int, 1)

	go handleInterrupt(stopChan, func(msg string) { logged <- msg }, func(code int) { exited <- code })

	select {
	case <-exited:
		t.Fatal("exited before any signal arrived")
	case <-time.After(20 * time.Millisecond):
	}

	stopChan <- os.Interrupt
	select {
	case code := <-exited:
		assert.Equal(t, 1, code)
		assert.Equal(t, "Interrupt signal received. Exiting...", <-logged)
	case <-time.After(time.Second):
		t.Fatal("exit was not called after the interrupt")
	}
}
