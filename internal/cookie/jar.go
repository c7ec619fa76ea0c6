package cookie

import "net/http"

// Jar binds a codec to one request/response pair.
type Jar struct {
	codec *Codec
	r     *http.Request
	w     http.ResponseWriter

	written *http.Cookie
}

func NewJar(codec *Codec, w http.ResponseWriter, r *http.Request) *Jar {
	return &Jar{codec: codec, r: r, w: w}
}

func (j *Jar) Raw() string {
	return j.codec.Raw(j.r)
}

// Load returns the record only when it is complete and unexpired.
func (j *Jar) Load() (*Record, bool) {
	rec, ok := j.codec.Read(j.r)
	if !ok || !j.codec.IsValid(rec) {
		return nil, false
	}
	return rec, true
}

func (j *Jar) Save(rec Record) error {
	ck, err := j.codec.Cookie(rec, j.r)
	if err != nil {
		return err
	}
	http.SetCookie(j.w, ck)
	j.written = ck
	return nil
}

func (j *Jar) Clear() {
	ck := j.codec.Clear(j.r)
	http.SetCookie(j.w, ck)
	j.written = ck
}

// Written is the last cookie set through this jar, or nil.
func (j *Jar) Written() *http.Cookie {
	return j.written
}
