//go:build windows

package vpn

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"golang.org/x/sys/windows"
)

// elevatedScript runs the client under PowerShell, sending all output to
// logPath and the exit code to markerPath.
func elevatedScript(binary, configPath, logPath, markerPath string) string {
	return fmt.Sprintf("& %s -c %s 2>&1 | Out-File -FilePath %s -Encoding utf8; "+
		"$LASTEXITCODE | Out-File -FilePath %s -Encoding ascii",
		psQuote(binary), psQuote(configPath), psQuote(logPath), psQuote(markerPath))
}

// psQuote renders s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// encodePowerShell returns the base64 UTF-16LE form accepted by -EncodedCommand.
func encodePowerShell(script string) string {
	units := utf16.Encode([]rune(script))
	buf := make([]byte, 2*len(units))
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[2*i:], u)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// shellExecuteRunAs launches file with args through the UAC prompt.
func shellExecuteRunAs(file, args string) error {
	verb, err := windows.UTF16PtrFromString("runas")
	if err != nil {
		return err
	}
	filePtr, err := windows.UTF16PtrFromString(file)
	if err != nil {
		return err
	}
	argsPtr, err := windows.UTF16PtrFromString(args)
	if err != nil {
		return err
	}
	return windows.ShellExecute(0, verb, filePtr, argsPtr, nil, windows.SW_HIDE)
}
