package ykoath

import (
	"errors"
	"fmt"

	"github.com/gregLibert/ykoath/pkg/iso7816"
)

// Error taxonomy. Device status words map deterministically onto these
// sentinels; anything the applet specification does not name is reported as
// ErrGenericDevice rather than guessed at. Match with errors.Is.
var (
	// ErrNoApplet is returned by Select when the token does not host the
	// OATH applet.
	ErrNoApplet = errors.New("device does not host the OATH applet")

	// ErrAuthRequired is returned when a protected operation is attempted
	// while the session is locked, either locally or by the device (6982).
	ErrAuthRequired = errors.New("authentication required")

	// ErrWrongPassword is returned by Validate when the derived key does
	// not match. The device enforces its own retry counter; see
	// RemainingRetries.
	ErrWrongPassword = errors.New("wrong password")

	// ErrAuthBlocked is returned when the device has exhausted its retry
	// counter and refuses further authentication attempts (6983).
	ErrAuthBlocked = errors.New("authentication method blocked by device")

	// ErrNoSuchCredential is returned when the named credential does not
	// exist on the device (6984). Deleting an absent name is an error,
	// never a silent no-op.
	ErrNoSuchCredential = errors.New("no such credential on device")

	// ErrStorageFull is returned by Put when the device is out of
	// credential slots (6A84).
	ErrStorageFull = errors.New("no space left on device")

	// ErrWrongSyntax is returned when the device rejects the command data
	// field (6A80).
	ErrWrongSyntax = errors.New("wrong syntax in command data")

	// ErrTouchRequired is returned when a credential demands physical
	// confirmation before it can be calculated (6985).
	ErrTouchRequired = errors.New("credential requires physical touch confirmation")

	// ErrInvalidInstruction is returned when the applet does not know the
	// instruction (6D00), typically a firmware too old for the command.
	ErrInvalidInstruction = errors.New("instruction not supported by applet")

	// ErrCommandAborted is returned when the device aborted processing (6F00).
	ErrCommandAborted = errors.New("command was aborted by device")

	// ErrGenericDevice covers device errors without a more precise mapping,
	// including unrecognized status words.
	ErrGenericDevice = errors.New("generic device error")

	// ErrMalformedResponse is returned when a response body does not parse
	// as the protocol prescribes.
	ErrMalformedResponse = errors.New("malformed device response")

	// ErrNotSelected is returned when an operation is attempted before a
	// successful Select, or after a torn exchange invalidated the session.
	ErrNotSelected = errors.New("applet not selected")
)

var statusErrors = map[iso7816.StatusWord]error{
	iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT: ErrAuthRequired,
	iso7816.SW_ERR_AUTH_METHOD_BLOCKED:     ErrAuthBlocked,
	iso7816.SW_ERR_REF_DATA_NOT_USABLE:     ErrNoSuchCredential,
	iso7816.SW_ERR_COND_OF_USE_NOT_SAT:     ErrTouchRequired,
	iso7816.SW_ERR_INCORRECT_PARAMS_DATA:   ErrWrongSyntax,
	iso7816.SW_ERR_FILE_NOT_FOUND:          ErrNoApplet,
	iso7816.SW_ERR_NOT_ENOUGH_MEMORY:       ErrStorageFull,
	iso7816.SW_ERR_MEMORY_FAILURE:          ErrGenericDevice,
	iso7816.SW_ERR_INS_INVALID:             ErrInvalidInstruction,
	iso7816.SW_ERR_UNKNOWN:                 ErrCommandAborted,
}

// statusError maps a device status word onto the error taxonomy.
// Success statuses map to nil.
func statusError(sw iso7816.StatusWord) error {
	if sw.IsSuccess() {
		return nil
	}

	// 63CX carries the remaining authentication retries.
	if retries, ok := sw.Counter(); ok {
		return &retryError{err: ErrWrongPassword, retries: retries}
	}

	if err, ok := statusErrors[sw]; ok {
		return err
	}

	return fmt.Errorf("%w: %s", ErrGenericDevice, sw.Verbose())
}

// retryError decorates a sentinel with the device's retry counter.
type retryError struct {
	err     error
	retries int
}

func (e *retryError) Error() string {
	return fmt.Sprintf("%s (%d attempts remaining)", e.err, e.retries)
}

func (e *retryError) Unwrap() error {
	return e.err
}

// RemainingRetries extracts the device-reported retry counter from an
// authentication error, if the device reported one.
func RemainingRetries(err error) (int, bool) {
	var re *retryError
	if errors.As(err, &re) {
		return re.retries, true
	}
	return 0, false
}

// TransportError wraps a failure of the physical exchange. It always
// invalidates the session: the applet must be re-selected (and the password
// re-validated on protected devices) before further calls.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport failure: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
