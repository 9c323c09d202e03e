//go:build !linux

package mq

import "time"

func Open(name string, flag int, perm uint32, attr *Attr) (int, error) { return -1, ErrUnsupported }

func TimedSend(fd int, msg []byte, prio uint, deadline time.Time) error { return ErrUnsupported }

func TimedReceive(fd int, buf []byte, deadline time.Time) (int, error) { return 0, ErrUnsupported }

func GetAttr(fd int) (Attr, error) { return Attr{}, ErrUnsupported }

func Close(fd int) error { return ErrUnsupported }

func Unlink(name string) error { return ErrUnsupported }

func IsInterrupted(err error) bool { return false }

func IsTimeout(err error) bool { return false }
