// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geometry

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// ErrZeroQuaternion is returned when normalizing a quaternion with zero norm.
var ErrZeroQuaternion = errors.New("geometry: cannot normalize zero quaternion")

// Vector3 is a free vector (translation, scale).
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Point is a position in a frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Uniform returns a vector with the same value on every axis.
func Uniform(v float64) Vector3 {
	return Vector3{X: v, Y: v, Z: v}
}

// Quaternion uses the x, y, z, w field layout of geometry_msgs.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Identity is the zero rotation.
var Identity = Quaternion{W: 1}

// Pose is a position plus orientation.
type Pose struct {
	Position    Point      `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// NewPose returns a pose at p with identity orientation.
func NewPose(p Point) Pose {
	return Pose{Position: p, Orientation: Identity}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{X: n.Imag, Y: n.Jmag, Z: n.Kmag, W: n.Real}
}

// Norm is the Euclidean norm over all four components.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalized returns q scaled to unit length.
func (q Quaternion) Normalized() (Quaternion, error) {
	n := q.Norm()
	if n == 0 || math.IsNaN(n) {
		return Quaternion{}, ErrZeroQuaternion
	}
	return fromNumber(quat.Scale(1/n, q.number())), nil
}

// Normalize scales q in place.
func (q *Quaternion) Normalize() error {
	u, err := q.Normalized()
	if err != nil {
		return err
	}
	*q = u
	return nil
}

// Mul returns the Hamilton product q*r.
func (q Quaternion) Mul(r Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), r.number()))
}

func axisAngle(x, y, z, angle float64) Quaternion {
	s, c := math.Sincos(angle / 2)
	return Quaternion{X: x * s, Y: y * s, Z: z * s, W: c}
}

// FromEuler converts static-axis roll, pitch, yaw (radians) to a quaternion,
// applying roll about X first, then pitch about Y, then yaw about Z.
func FromEuler(roll, pitch, yaw float64) Quaternion {
	qx := axisAngle(1, 0, 0, roll)
	qy := axisAngle(0, 1, 0, pitch)
	qz := axisAngle(0, 0, 1, yaw)
	return qz.Mul(qy).Mul(qx)
}

// Rotate applies q to v. q is assumed to be unit length.
func (q Quaternion) Rotate(v Vector3) Vector3 {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	n := q.number()
	r := quat.Mul(quat.Mul(n, p), quat.Conj(n))
	return Vector3{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}
